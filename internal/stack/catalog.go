package stack

// kindInfo carries the catalog defaults for one supported service kind.
type kindInfo struct {
	Port    int
	Scheme  string
	Image   string // image repository, without tag
	DataDir string // container path persisted in a named volume
}

// catalog lists the service kinds stackctl knows how to bootstrap,
// with the defaults applied when the stack file leaves them unset.
// Services of any other kind are still provisioned (their declared type
// is used as the image reference) but are excluded from the open phase
// and reported as unsupported.
var catalog = map[string]kindInfo{
	"mysql":           {Port: 3306, Scheme: "mysql", Image: "mysql", DataDir: "/var/lib/mysql"},
	"mariadb":         {Port: 3306, Scheme: "mysql", Image: "mariadb", DataDir: "/var/lib/mysql"},
	"postgresql":      {Port: 5432, Scheme: "pgsql", Image: "postgres", DataDir: "/var/lib/postgresql/data"},
	"redis":           {Port: 6379, Scheme: "redis", Image: "redis", DataDir: "/data"},
	"memcached":       {Port: 11211, Scheme: "memcached", Image: "memcached"},
	"mongodb":         {Port: 27017, Scheme: "mongodb", Image: "mongo", DataDir: "/data/db"},
	"elasticsearch":   {Port: 9200, Scheme: "http", Image: "elasticsearch", DataDir: "/usr/share/elasticsearch/data"},
	"rabbitmq":        {Port: 5672, Scheme: "amqp", Image: "rabbitmq", DataDir: "/var/lib/rabbitmq"},
	"solr":            {Port: 8983, Scheme: "solr", Image: "solr", DataDir: "/var/solr"},
	"varnish":         {Port: 80, Scheme: "http", Image: "varnish"},
	"network-storage": {Port: 2049, Scheme: "nfs", Image: "itsthenetwork/nfs-server-alpine", DataDir: "/nfsshare"},
	"influxdb":        {Port: 8086, Scheme: "http", Image: "influxdb", DataDir: "/var/lib/influxdb"},
	"kafka":           {Port: 9092, Scheme: "kafka", Image: "apache/kafka", DataDir: "/var/lib/kafka/data"},
}

// Supported reports whether the given service kind is in the catalog.
func Supported(kind string) bool {
	_, ok := catalog[kind]
	return ok
}

// SupportedKinds returns the catalog kinds. Order is unspecified.
func SupportedKinds() []string {
	kinds := make([]string, 0, len(catalog))
	for kind := range catalog {
		kinds = append(kinds, kind)
	}
	return kinds
}

// ImageFor returns the image reference to run a service with. Catalog
// kinds map to their canonical repository plus the declared version as
// tag; anything else is taken as a literal image reference.
func ImageFor(svc *Service) string {
	info, ok := catalog[svc.Kind]
	if !ok {
		return svc.Type
	}
	if svc.Version == "" {
		return info.Image
	}
	return info.Image + ":" + svc.Version
}

// DataDir returns the container path a kind persists its data under, or
// empty when the kind keeps no state worth a volume.
func DataDir(kind string) string {
	return catalog[kind].DataDir
}
