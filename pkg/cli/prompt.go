/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/NVIDIA/dcgm-provision/pkg/config"
	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
)

const prerequisitesNotice = `
NOTE: Please confirm that the following PREREQUISITES have been completed before proceeding:
1. This EC2 instance has an attached IAM role with CloudWatch access.
2. The CloudWatch agent package has been installed. Agent configuration will be done by this tool.
3. This EC2 instance has NVIDIA GPUs attached, and already has the 'dcgmi' and 'nvidia-smi' CLI tools.
4. If the EC2 instance has a name, it is recommended to specify it in property 'general' -> 'instance.name' of the %s config file.
`

// confirmFunc builds the operator gate invoked before any mutation. With
// assumeYes the prompt is skipped after printing the prerequisites notice;
// otherwise in must be a terminal so the answer can actually be read.
func confirmFunc(in *os.File, out io.Writer, settings *config.Settings, cfgFile string, assumeYes bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		if settings.InstanceName == "" {
			color.New(color.FgYellow).Fprintf(out,
				"Instance name is NOT specified in config file '%s' property 'general' -> 'instance.name'.\n",
				cfgFile)
		}

		fmt.Fprintf(out, prerequisitesNotice, cfgFile)

		if assumeYes {
			fmt.Fprintln(out, "Proceeding without confirmation (--yes).")
			return true, nil
		}

		if !term.IsTerminal(int(in.Fd())) {
			return false, apperrors.New(apperrors.ErrCodePreconditionMismatch,
				"stdin is not a terminal, re-run with --yes to proceed non-interactively")
		}

		return promptYesNo(in, out)
	}
}

// promptYesNo asks the continue question and treats anything but y as no.
func promptYesNo(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Configuring DCGM Exporter on this VM. Metrics will be sent to CloudWatch. Continue? [y|n]: ")

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return false, apperrors.Wrap(apperrors.ErrCodePreconditionMismatch,
				"unable to read confirmation answer", err)
		}
		return false, nil
	}

	return strings.EqualFold(strings.TrimSpace(sc.Text()), "y"), nil
}
