// Package kubernetes runs stack workloads against an existing Kubernetes
// cluster. Containers map to pods labelled with the stack and service they
// belong to, and probes run through the exec subresource. The backend never
// provisions workloads itself; it expects a chart or operator to have placed
// the pods and only inspects and execs into them.
package kubernetes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Important for various auth providers
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"stackctl/internal/engine"
	"stackctl/pkg/logging"
)

// Pod labels the backend selects on. A deployment tool that places stack
// workloads on a cluster must set both.
const (
	LabelStack   = "stackctl.io/stack"
	LabelService = "stackctl.io/service"
)

// Engine talks to a Kubernetes cluster through client-go.
type Engine struct {
	clientset k8s.Interface
	config    *rest.Config

	// Injection points for tests; New wires the real implementations.
	execURL     func(namespace, pod string, opts *corev1.PodExecOptions) *url.URL
	newExecutor func(config *rest.Config, method string, u *url.URL) (remotecommand.Executor, error)
}

// New builds an Engine from the ambient kubeconfig. A non-empty kubeContext
// overrides the current context.
func New(kubeContext string) (*Engine, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	configOverrides := &clientcmd.ConfigOverrides{}
	if kubeContext != "" {
		configOverrides.CurrentContext = kubeContext
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("kubernetes: load config for context %q: %w", kubeContext, err)
	}
	restConfig.Timeout = 30 * time.Second

	clientset, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("kubernetes: create clientset: %w", err)
	}

	e := &Engine{
		clientset:   clientset,
		config:      restConfig,
		newExecutor: remotecommand.NewSPDYExecutor,
	}
	e.execURL = e.buildExecURL
	return e, nil
}

func (e *Engine) Name() string { return "kubernetes" }

// Namespace returns the namespace a stack's workloads live in.
func Namespace(stack string) string { return stack }

// Inspect resolves the pod backing a service and reports its identity and
// address. The pod IP is exposed under the "default" network.
func (e *Engine) Inspect(ctx context.Context, t engine.Target) (engine.ContainerFacts, error) {
	pod, err := e.podFor(ctx, t)
	if err != nil {
		return engine.ContainerFacts{}, err
	}
	return engine.ContainerFacts{
		ID:      pod.Name,
		Running: isPodReady(pod),
		Networks: map[string]engine.Network{
			"default": {
				IPAddress: pod.Status.PodIP,
				Aliases:   []string{t.Name},
			},
		},
	}, nil
}

// Exec runs cmd inside the pod backing the target service. Environment
// variables are passed by wrapping the command with env(1) since the exec
// subresource carries none. ExecOptions.User is ignored; the pod's security
// context decides the user.
func (e *Engine) Exec(ctx context.Context, t engine.Target, cmd []string, opts engine.ExecOptions) ([]byte, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = engine.DefaultExecRetryDelay
	}

	var out []byte
	attempt := 0
	err := engine.Retry(ctx, attempts, delay, func() error {
		attempt++
		var execErr error
		out, execErr = e.execOnce(ctx, t, withEnv(cmd, opts.Env), opts)
		if execErr != nil && !opts.Silent {
			logging.Warn("Kubernetes", "exec attempt %d/%d in %s/%s failed: %v",
				attempt, attempts, Namespace(t.Stack), t.Name, execErr)
		}
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("kubernetes: exec in %s: %w", t.Name, err)
	}
	return out, nil
}

func (e *Engine) execOnce(ctx context.Context, t engine.Target, cmd []string, opts engine.ExecOptions) ([]byte, error) {
	pod, err := e.podFor(ctx, t)
	if err != nil {
		return nil, err
	}
	if !isPodReady(pod) {
		return nil, fmt.Errorf("pod %s is not ready", pod.Name)
	}

	u := e.execURL(Namespace(t.Stack), pod.Name, &corev1.PodExecOptions{
		Command: cmd,
		Stdout:  true,
		Stderr:  true,
	})
	executor, err := e.newExecutor(e.config, http.MethodPost, u)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		var codeErr utilexec.CodeExitError
		if errors.As(err, &codeErr) {
			return nil, &engine.ExitError{Code: codeErr.Code, Stderr: stderr.String()}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (e *Engine) buildExecURL(namespace, pod string, opts *corev1.PodExecOptions) *url.URL {
	return e.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("exec").
		VersionedParams(opts, scheme.ParameterCodec).
		URL()
}

// podFor lists pods carrying the stack and service labels and returns the
// first ready one, falling back to the first listed so Inspect can still
// report a pending pod. No pods at all maps to engine.ErrNotFound.
func (e *Engine) podFor(ctx context.Context, t engine.Target) (*corev1.Pod, error) {
	selector := labels.SelectorFromSet(labels.Set{
		LabelStack:   t.Stack,
		LabelService: t.Name,
	})
	podList, err := e.clientset.CoreV1().Pods(Namespace(t.Stack)).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("kubernetes: list pods for %s: %w", t.Name, err)
	}
	if len(podList.Items) == 0 {
		return nil, fmt.Errorf("kubernetes: no pod for service %s in stack %s: %w", t.Name, t.Stack, engine.ErrNotFound)
	}
	for i := range podList.Items {
		if isPodReady(&podList.Items[i]) {
			return &podList.Items[i], nil
		}
	}
	return &podList.Items[0], nil
}

func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// withEnv wraps cmd with env(1) so variables reach the remote process.
func withEnv(cmd, env []string) []string {
	if len(env) == 0 {
		return cmd
	}
	wrapped := make([]string, 0, len(env)+1+len(cmd))
	wrapped = append(wrapped, "env")
	wrapped = append(wrapped, env...)
	return append(wrapped, cmd...)
}
