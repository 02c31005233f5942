// Package docker implements the engine interface on the Docker Engine
// API. One stack maps to one attachable bridge network plus one
// container per service or application; names and labels carry the
// stack identity so later runs and teardown can find everything again.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"stackctl/internal/engine"
	"stackctl/pkg/logging"
)

// Labels stamped onto everything stackctl creates.
const (
	LabelStack   = "stackctl.stack"
	LabelService = "stackctl.service"
	LabelRun     = "stackctl.run"
)

// apiClient is the slice of the Docker client the engine uses. Tests
// substitute a fake.
type apiClient interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkRemove(ctx context.Context, networkID string) error
	VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// Engine talks to a Docker daemon.
type Engine struct {
	cli apiClient
}

// New connects to the daemon using the standard environment variables
// (DOCKER_HOST etc.) with API version negotiation.
func New() (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: connect: %w", err)
	}
	return &Engine{cli: cli}, nil
}

func (e *Engine) Name() string { return "docker" }

// ContainerName maps a target onto the container naming scheme.
func ContainerName(t engine.Target) string {
	return t.Stack + "_" + t.Name
}

// NetworkName is the stack's shared bridge network.
func NetworkName(stack string) string {
	return stack + "_default"
}

func volumeName(stack, service string) string {
	return stack + "_" + service + "_data"
}

// Inspect reports whether the target's container runs and where it sits
// on the stack network.
func (e *Engine) Inspect(ctx context.Context, target engine.Target) (engine.ContainerFacts, error) {
	name := ContainerName(target)
	info, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return engine.ContainerFacts{}, fmt.Errorf("docker: inspect %s: %w", name, engine.ErrNotFound)
		}
		return engine.ContainerFacts{}, fmt.Errorf("docker: inspect %s: %w", name, err)
	}

	facts := engine.ContainerFacts{ID: info.ID}
	if info.State != nil {
		facts.Running = info.State.Running
	}
	if info.NetworkSettings != nil {
		facts.Networks = make(map[string]engine.Network, len(info.NetworkSettings.Networks))
		for netName, endpoint := range info.NetworkSettings.Networks {
			if endpoint == nil {
				continue
			}
			facts.Networks[netName] = engine.Network{
				IPAddress: endpoint.IPAddress,
				Aliases:   append([]string(nil), endpoint.Aliases...),
			}
		}
	}
	return facts, nil
}

// Exec runs cmd inside the target container, retrying per the options.
// The returned bytes are the command's stdout; stderr travels in the
// error when the command fails.
func (e *Engine) Exec(ctx context.Context, target engine.Target, cmd []string, opts engine.ExecOptions) ([]byte, error) {
	name := ContainerName(target)
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = engine.DefaultExecRetryDelay
	}

	var output []byte
	attempt := 0
	err := engine.Retry(ctx, opts.Attempts, delay, func() error {
		attempt++
		out, err := e.execOnce(ctx, name, cmd, opts)
		output = out
		if err != nil && !opts.Silent {
			logging.Warn("Docker", "exec in %s failed (attempt %d): %v", name, attempt, err)
		}
		return err
	})
	if err != nil {
		return output, fmt.Errorf("docker: exec in %s: %w", name, err)
	}
	return output, nil
}

func (e *Engine) execOnce(ctx context.Context, name string, cmd []string, opts engine.ExecOptions) ([]byte, error) {
	created, err := e.cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		User:         opts.User,
		Cmd:          cmd,
		Env:          opts.Env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attached, err := e.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if err := demux(&stdout, &stderr, attached.Reader); err != nil {
		return nil, fmt.Errorf("read exec stream: %w", err)
	}

	info, err := e.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("inspect exec: %w", err)
	}
	if info.ExitCode != 0 {
		return stdout.Bytes(), &engine.ExitError{Code: info.ExitCode, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// stackFilter matches everything created for the named stack.
func stackFilter(stack string) filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelStack+"="+stack))
}
