/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package docker

import (
	"github.com/distribution/reference"

	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
)

// imageNamespace is the registry namespace the exporter image lives under.
const imageNamespace = "nvcr.io/nvidia/k8s"

// ImageRef composes and validates the exporter image reference from the
// configured package version (name:tag). The raw string is returned so the
// docker command uses exactly what the operator configured.
func ImageRef(packageVersion string) (string, error) {
	raw := imageNamespace + "/" + packageVersion

	ref, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return "", apperrors.WrapWithContext(apperrors.ErrCodePreconditionMismatch,
			"invalid exporter image reference", err,
			map[string]any{"reference": raw})
	}

	// an untagged reference would float on :latest; require the tag the
	// config names
	if _, ok := ref.(reference.Tagged); !ok {
		return "", apperrors.NewWithContext(apperrors.ErrCodePreconditionMismatch,
			"exporter image reference has no tag",
			map[string]any{"reference": raw})
	}

	return raw, nil
}
