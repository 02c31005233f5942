package stack

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointDescriptor_Merge(t *testing.T) {
	base := EndpointDescriptor{
		Host:   "db",
		Port:   3306,
		Scheme: "mysql",
		Rel:    "database",
	}
	overlay := EndpointDescriptor{
		Host:     "db.internal",
		Username: "app",
		Password: "secret",
	}

	merged := base.Merge(overlay)
	assert.Equal(t, "db.internal", merged.Host)
	assert.Equal(t, 3306, merged.Port)
	assert.Equal(t, "mysql", merged.Scheme)
	assert.Equal(t, "app", merged.Username)
	assert.Equal(t, "database", merged.Rel)

	// Zero overlay leaves the base untouched.
	assert.Equal(t, base, base.Merge(EndpointDescriptor{}))
}

func TestStack_Hostname(t *testing.T) {
	s := &Stack{Name: "mysite", Domain: "stackctl.site"}
	assert.Equal(t, "mysite.db.service._.stackctl.site", s.Hostname("db"))

	s.Domain = ""
	assert.Empty(t, s.Hostname("db"))
}

func TestStack_ClosestApplication(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "stacks", "mysite")
	web := &Application{Name: "web", Dir: filepath.Join(root, "web")}
	adminUI := &Application{Name: "admin", Dir: filepath.Join(root, "web", "admin")}
	api := &Application{Name: "api", Dir: filepath.Join(root, "api")}
	s := &Stack{Apps: []*Application{web, adminUI, api}}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"exact app dir", filepath.Join(root, "api"), "api"},
		{"nested under app", filepath.Join(root, "web", "src", "index.php"), "web"},
		{"nearest ancestor wins", filepath.Join(root, "web", "admin", "panel"), "admin"},
		{"sibling prefix is not a match", filepath.Join(root, "webby"), "web"}, // falls back to first declared
		{"outside every app", filepath.Join(root, "docs"), "web"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ClosestApplication(tt.path)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("mysql"))
	assert.True(t, Supported("network-storage"))
	assert.False(t, Supported("meilisearch"))
	assert.False(t, Supported(""))
}

func TestImageFor(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
		want string
	}{
		{"catalog kind with version", &Service{Type: "mysql:10", Kind: "mysql", Version: "10"}, "mysql:10"},
		{"catalog kind maps repository", &Service{Type: "postgresql:16", Kind: "postgresql", Version: "16"}, "postgres:16"},
		{"catalog kind without version", &Service{Type: "redis", Kind: "redis"}, "redis"},
		{"unknown kind is a literal reference", &Service{Type: "meilisearch:1.6", Kind: "meilisearch", Version: "1.6"}, "meilisearch:1.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImageFor(tt.svc))
		})
	}
}

func TestDataDir(t *testing.T) {
	assert.Equal(t, "/var/lib/mysql", DataDir("mysql"))
	assert.Empty(t, DataDir("memcached"))
	assert.Empty(t, DataDir("meilisearch"))
}
