package docker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"

	"stackctl/internal/engine"
	"stackctl/pkg/logging"
)

// Provision ensures the stack network exists and every container in
// the spec exists and runs. Existing containers are reused, stopped
// ones restarted; recreation is the rebuild flow's job (Destroy, then
// Provision).
func (e *Engine) Provision(ctx context.Context, spec engine.ProvisionSpec) error {
	netName := NetworkName(spec.Stack)
	if err := e.ensureNetwork(ctx, netName, spec); err != nil {
		return err
	}

	for _, c := range spec.Containers {
		if err := e.ensureContainer(ctx, netName, spec, c); err != nil {
			return err
		}
	}
	return nil
}

// ensureNetwork creates the stack network if missing. Creation is
// race-safe: a create failure followed by a successful inspect means
// someone else won the race.
func (e *Engine) ensureNetwork(ctx context.Context, netName string, spec engine.ProvisionSpec) error {
	if _, err := e.cli.NetworkInspect(ctx, netName, network.InspectOptions{}); err == nil {
		return nil
	}

	_, err := e.cli.NetworkCreate(ctx, netName, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels: map[string]string{
			LabelStack: spec.Stack,
			LabelRun:   spec.RunID,
		},
	})
	if err != nil {
		if _, ie := e.cli.NetworkInspect(ctx, netName, network.InspectOptions{}); ie != nil {
			return fmt.Errorf("docker: create network %q: %w", netName, err)
		}
	}
	logging.Debug("Docker", "network %s ready", netName)
	return nil
}

func (e *Engine) ensureVolume(ctx context.Context, name string, spec engine.ProvisionSpec) error {
	_, err := e.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name: name,
		Labels: map[string]string{
			LabelStack: spec.Stack,
			LabelRun:   spec.RunID,
		},
	})
	if err != nil {
		return fmt.Errorf("docker: create volume %q: %w", name, err)
	}
	return nil
}

func (e *Engine) ensureContainer(ctx context.Context, netName string, spec engine.ProvisionSpec, c engine.ContainerSpec) error {
	name := ContainerName(engine.Target{Stack: spec.Stack, Name: c.Name})

	info, err := e.cli.ContainerInspect(ctx, name)
	switch {
	case err == nil && info.State != nil && info.State.Running:
		logging.Debug("Docker", "container %s already running", name)
		return nil
	case err == nil:
		if err := e.cli.ContainerStart(ctx, info.ID, container.StartOptions{}); err != nil {
			return fmt.Errorf("docker: start container %q: %w", name, err)
		}
		logging.Info("Docker", "restarted container %s", name)
		return nil
	case !errdefs.IsNotFound(err):
		return fmt.Errorf("docker: inspect container %q: %w", name, err)
	}

	mounts := make([]mount.Mount, 0, len(c.Mounts))
	for _, m := range c.Mounts {
		mt := mount.Mount{Source: m.Source, Target: m.Target}
		if strings.HasPrefix(m.Source, "/") {
			mt.Type = mount.TypeBind
		} else {
			mt.Type = mount.TypeVolume
			if err := e.ensureVolume(ctx, m.Source, spec); err != nil {
				return err
			}
		}
		mounts = append(mounts, mt)
	}

	labels := map[string]string{
		LabelStack:   spec.Stack,
		LabelService: c.Name,
		LabelRun:     spec.RunID,
	}
	for k, v := range c.Labels {
		labels[k] = v
	}

	cfg := &container.Config{
		Image:    c.Image,
		Env:      c.Env,
		Labels:   labels,
		Hostname: c.Name,
	}
	hostCfg := &container.HostConfig{
		Mounts: mounts,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			netName: {Aliases: append([]string{c.Name}, c.Aliases...)},
		},
	}

	id, err := e.createContainer(ctx, name, c.Image, cfg, hostCfg, netCfg)
	if err != nil {
		return err
	}
	if err := e.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("docker: start container %q: %w", name, err)
	}
	logging.Info("Docker", "started container %s (%s)", name, c.Image)
	return nil
}

// createContainer creates the container, pulling the image on a
// not-found failure and reusing a concurrently created container.
func (e *Engine) createContainer(ctx context.Context, name, imageRef string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	created, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err == nil {
		return created.ID, nil
	}

	if errdefs.IsNotFound(err) {
		if pullErr := e.pullImage(ctx, imageRef); pullErr != nil {
			return "", pullErr
		}
		created, err = e.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
		if err == nil {
			return created.ID, nil
		}
	}

	// Race-safe: if something else created it, inspect and proceed.
	if info, ie := e.cli.ContainerInspect(ctx, name); ie == nil {
		return info.ID, nil
	}
	return "", fmt.Errorf("docker: create container %q: %w", name, err)
}

func (e *Engine) pullImage(ctx context.Context, imageRef string) error {
	logging.Info("Docker", "pulling image %s", imageRef)
	rc, err := e.cli.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pull image %q: %w", imageRef, err)
	}
	defer rc.Close()
	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("docker: pull image %q: %w", imageRef, err)
	}
	return nil
}

// Destroy removes every container, the network, and the data volumes
// labeled with the stack name. Missing resources are ignored so the
// operation is idempotent.
func (e *Engine) Destroy(ctx context.Context, stackName string) error {
	containers, err := e.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: stackFilter(stackName),
	})
	if err != nil {
		return fmt.Errorf("docker: list stack containers: %w", err)
	}
	for _, c := range containers {
		// Stop is best-effort; force remove covers a stuck container.
		_ = e.cli.ContainerStop(ctx, c.ID, container.StopOptions{})
		if err := e.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("docker: remove container %q: %w", c.ID, err)
		}
		logging.Info("Docker", "removed container %s", strings.TrimPrefix(firstName(c.Names), "/"))
	}

	volumes, err := e.cli.VolumeList(ctx, volume.ListOptions{Filters: stackFilter(stackName)})
	if err != nil {
		return fmt.Errorf("docker: list stack volumes: %w", err)
	}
	for _, v := range volumes.Volumes {
		if v == nil {
			continue
		}
		if err := e.cli.VolumeRemove(ctx, v.Name, true); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("docker: remove volume %q: %w", v.Name, err)
		}
	}

	if err := e.cli.NetworkRemove(ctx, NetworkName(stackName)); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("docker: remove network %q: %w", NetworkName(stackName), err)
	}
	return nil
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
