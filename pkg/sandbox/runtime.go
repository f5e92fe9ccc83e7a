// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// Runtime is the Sandbox Runtime collaborator: one instance wraps a single
// daemon connection and is shared across sessions (spec §9 Design Notes'
// global-daemon-handle pattern, mirrored from the Report Emitter's Queue).
type Runtime struct {
	cli *client.Client
}

// New builds a client for the container daemon at host (empty string uses
// the environment-configured default, e.g. DOCKER_HOST). No connection is
// made until the first daemon call; use Ping to check reachability.
func New(host string) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "sandbox.New", "connect to container daemon", err)
	}
	return &Runtime{cli: cli}, nil
}

// Close releases the daemon connection.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

// Client exposes the underlying daemon client for collaborators that need
// direct access (the Container Sampler's stats polling).
func (r *Runtime) Client() *client.Client {
	return r.cli
}

// Ping verifies the daemon is reachable, used by the Session Manager's
// pre-execution environment check.
func (r *Runtime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return errs.Wrap(errs.KindEnvironmentUnavailable, "sandbox.Ping", "container daemon unreachable", err)
	}
	return nil
}

// BuildImage renders the templating collaborator's output directory
// (already materialized at spec.DockerfileDir by the caller) into an image,
// forwarding build args and honoring the base image tag (spec §4.4).
func (r *Runtime) BuildImage(ctx context.Context, spec BuildSpec) (string, error) {
	imageRef := fmt.Sprintf("sandboxd/%s:latest", spec.SessionID)

	buildCtx, err := tarDirectory(spec.DockerfileDir)
	if err != nil {
		return "", errs.Wrap(errs.KindSandboxFailure, "sandbox.BuildImage", "package build context", err)
	}

	buildArgs := make(map[string]*string, len(spec.BuildArgs))
	for k, v := range spec.BuildArgs {
		val := v
		buildArgs[k] = &val
	}
	if spec.BaseImageTag != "" {
		tag := spec.BaseImageTag
		buildArgs["BASE_IMAGE_TAG"] = &tag
	}

	resp, err := r.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:      []string{imageRef},
		Dockerfile: "Dockerfile",
		BuildArgs: buildArgs,
		Remove:    true,
	})
	if err != nil {
		return "", errs.Wrap(errs.KindSandboxFailure, "sandbox.BuildImage", "image build request failed", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return "", errs.Wrap(errs.KindSandboxFailure, "sandbox.BuildImage", "drain build response", err)
	}

	slog.Info("sandbox image built", "session_id", spec.SessionID, "image_ref", imageRef)
	return imageRef, nil
}

// RunSandbox starts a hardened container for the session (spec §4.4).
func (r *Runtime) RunSandbox(ctx context.Context, spec RunSpec) (*Handle, error) {
	entrypoint := []string{"tail", "-f", "/dev/null"}
	if spec.UserEmul && len(spec.Entrypoint) > 0 {
		entrypoint = spec.Entrypoint
	}

	env := make([]string, 0, len(spec.Environment))
	for k, v := range spec.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	cfg := &container.Config{
		Image:      spec.ImageRef,
		Entrypoint: entrypoint,
		Env:        env,
		Labels:     map[string]string{OwnerLabel: OwnerValue, "sandboxd_session_id": spec.SessionID},
	}

	nanoCPUs := spec.NanoCPUs
	if nanoCPUs <= 0 {
		nanoCPUs = int64(defaults.CPUCores * 1e9)
	}
	memBytes := spec.MemoryBytes
	if memBytes <= 0 {
		memBytes = defaults.MemoryBytes
	}

	hostCfg := &container.HostConfig{
		Runtime: spec.RuntimeClass,
		Resources: container.Resources{
			NanoCPUs:         nanoCPUs,
			Memory:           memBytes,
			MemorySwappiness: int64Ptr(0),
		},
		Binds: []string{fmt.Sprintf("%s:%s:rw", spec.ResultsHostDir, ResultsMountPath)},
	}

	var netCfg *network.NetworkingConfig
	if spec.NetworkDisabled {
		hostCfg.NetworkMode = "none"
	}

	created, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, "")
	if err != nil {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.RunSandbox", "create container", err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.RunSandbox", "start container", err)
	}

	slog.Info("sandbox container started", "session_id", spec.SessionID, "container_id", created.ID)
	return &Handle{ContainerID: created.ID, ImageRef: spec.ImageRef}, nil
}

// ExecInSandbox runs the in-sandbox benchmarker entry-point inside an
// already-running container (spec §4.4). When onStart is non-nil, it is
// invoked at most once with the exec's host-visible pid; it is not invoked
// if the exec finishes, or ctx ends, before the daemon reports a pid (spec §4.2: the
// Process Benchmarker samples this pid via gopsutil from the host while the
// exec runs, since the daemon's pid namespace is visible from the host's
// /proc).
func (r *Runtime) ExecInSandbox(ctx context.Context, h *Handle, argv []string, env map[string]string, onStart func(pid int32)) (*ExecResult, error) {
	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, fmt.Sprintf("%s=%s", k, v))
	}

	created, err := r.cli.ContainerExecCreate(ctx, h.ContainerID, types.ExecConfig{
		Cmd:          argv,
		Env:          envList,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.ExecInSandbox", "create exec", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.ExecInSandbox", "attach exec", err)
	}
	defer attach.Close()

	if onStart != nil {
		go r.awaitExecPID(ctx, created.ID, onStart)
	}

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.ExecInSandbox", "read exec output", err)
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSandboxFailure, "sandbox.ExecInSandbox", "inspect exec", err)
	}

	return &ExecResult{
		ExitCode: int64(inspect.ExitCode),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// awaitExecPID polls the exec's inspect result until the daemon reports a
// pid, then calls onStart once. Returns early once the exec is no longer
// running without ever having reported a pid (it exited too fast to sample).
func (r *Runtime) awaitExecPID(ctx context.Context, execID string, onStart func(pid int32)) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inspect, err := r.cli.ContainerExecInspect(ctx, execID)
			if err != nil {
				return
			}
			if inspect.Pid != 0 {
				onStart(int32(inspect.Pid))
				return
			}
			if !inspect.Running {
				return
			}
		}
	}
}

// WaitContainer blocks until containerID exits (used when the session's
// container entrypoint is the target binary itself, per spec §5: "Session
// Manager waits for the in-sandbox process to finish via the container
// daemon's wait API with a timeout H"). The caller supplies that timeout
// via ctx.
func (r *Runtime) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, errs.Wrap(errs.KindSandboxFailure, "sandbox.WaitContainer", "wait for container", err)
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Teardown stops and removes every container bearing both the owner label
// and this session's sandboxd_session_id label, then forcibly removes the
// image; other sessions' containers are left alone (TeardownAll removes
// every owned container). Idempotent: calling it twice is equivalent to
// calling it once (spec §4.4, §8 invariant 6).
func (r *Runtime) Teardown(ctx context.Context, sessionID, imageRef string) error {
	f := filters.NewArgs(
		filters.Arg("label", fmt.Sprintf("%s=%s", OwnerLabel, OwnerValue)),
		filters.Arg("label", fmt.Sprintf("sandboxd_session_id=%s", sessionID)),
	)
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return errs.Wrap(errs.KindSandboxFailure, "sandbox.Teardown", "list owned containers", err)
	}

	for _, c := range containers {
		timeout := int(defaults.TeardownGracePeriod / time.Second)
		_ = r.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		_ = r.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true})
		slog.Info("sandbox container torn down", "session_id", sessionID, "container_id", c.ID)
	}

	if imageRef != "" {
		if _, err := r.cli.ImageRemove(ctx, imageRef, types.ImageRemoveOptions{Force: true}); err != nil {
			slog.Warn("image removal failed during teardown (may already be gone)", "image_ref", imageRef, "error", err)
		}
	}
	return nil
}

// TeardownAll stops and removes every container and image this process owns,
// regardless of session, for the CLI's "backend down" command (spec §6).
func (r *Runtime) TeardownAll(ctx context.Context) error {
	f := filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", OwnerLabel, OwnerValue)))
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return errs.Wrap(errs.KindSandboxFailure, "sandbox.TeardownAll", "list owned containers", err)
	}

	for _, c := range containers {
		timeout := int(defaults.TeardownGracePeriod / time.Second)
		_ = r.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		_ = r.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true})
		slog.Info("sandbox container torn down", "container_id", c.ID)
	}

	imgFilter := filters.NewArgs(filters.Arg("reference", "sandboxd/*"))
	images, err := r.cli.ImageList(ctx, types.ImageListOptions{Filters: imgFilter})
	if err != nil {
		return errs.Wrap(errs.KindSandboxFailure, "sandbox.TeardownAll", "list owned images", err)
	}
	for _, img := range images {
		if _, err := r.cli.ImageRemove(ctx, img.ID, types.ImageRemoveOptions{Force: true}); err != nil {
			slog.Warn("image removal failed during teardown", "image_id", img.ID, "error", err)
		}
	}
	return nil
}

func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{Name: rel, Mode: 0o644, Size: int64(len(data))}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func int64Ptr(v int64) *int64 { return &v }
