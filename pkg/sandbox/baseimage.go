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
	"context"
	"fmt"

	"github.com/distribution/reference"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// ResolveBaseImage validates a session's configured base_image_tag as a
// well-formed image reference and confirms the manifest is resolvable in
// its registry, before the templating collaborator renders a Dockerfile
// against it. A malformed tag becomes a user-input failure and a manifest
// that cannot be resolved becomes an environment-unavailable failure, both
// at session-build time rather than as a confusing build failure deep
// inside the daemon.
func ResolveBaseImage(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		return "", nil
	}

	named, err := reference.ParseNormalizedNamed(tag)
	if err != nil {
		return "", errs.Wrap(errs.KindUserInput, "sandbox.ResolveBaseImage", "invalid base image tag", err)
	}

	tagged, ok := named.(reference.Tagged)
	refTag := "latest"
	if ok {
		refTag = tagged.Tag()
	}

	repo, err := remote.NewRepository(reference.Path(named))
	if err != nil {
		return "", errs.Wrap(errs.KindUserInput, "sandbox.ResolveBaseImage", "construct registry reference", err)
	}
	repo.Reference.Registry = reference.Domain(named)

	if _, _, err := repo.Manifests().Resolve(ctx, refTag); err != nil {
		return "", errs.Wrap(errs.KindEnvironmentUnavailable, "sandbox.ResolveBaseImage", fmt.Sprintf("resolve %s:%s in registry", reference.Path(named), refTag), err)
	}

	return named.String(), nil
}
