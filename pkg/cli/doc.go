// Package cli implements the dcgm-provision command-line interface.
//
// # Overview
//
// dcgm-provision is a single-command tool that configures an EC2 GPU host to
// publish NVIDIA GPU metrics to CloudWatch. It appends the base, nvidia-smi,
// and DCGM metric sections to the CloudWatch agent configuration, runs the
// DCGM exporter container, and installs the Prometheus scrape configuration
// the agent reads the exporter through. Re-running the tool is safe: tiers
// already configured are detected and skipped.
//
// # Usage
//
//	dcgm-provision [--config FILE] [--log-level LEVEL] [--yes]
//
// # Flags
//
//	--config       Provisioning config file (default: aws_dcgm_exporter.cfg)
//	--log-level    Log level: debug, info, warn, error (default: info)
//	--yes, -y      Skip the confirmation prompt
//	--help, -h     Show command help
//	--version, -v  Show version information
//
// # Environment Variables
//
//	LOG_LEVEL  Set logging verbosity (debug, info, warn, error)
//
// # Exit Codes
//
//	0  Success, including no-op and declined-confirmation runs
//	1  General error (missing config, failed preliminaries, execution failure)
//
// # Architecture
//
// The CLI uses the urfave/cli/v3 framework and delegates to specialized packages:
//   - pkg/reconciler - Provisioning control flow
//   - pkg/agent - CloudWatch agent control
//   - pkg/docker - DCGM exporter container management
//   - pkg/scrape - Prometheus scrape configuration
//   - pkg/preflight - Host preliminary checks
//   - pkg/logging - Structured logging
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/dcgm-provision/pkg/cli.version=1.0.0'"
package cli
