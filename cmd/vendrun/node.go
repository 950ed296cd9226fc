// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vendrun-cli/internal/nodever"
)

var (
	nodeCmd = &cobra.Command{
		Use:   "node",
		Short: "Inspect Node.js version resolution for the target tool",
	}

	nodeResolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Show which installed Node.js version exposes the target tool",
		RunE:  runNodeResolve,
	}

	nodeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List installed Node.js versions, highest first",
		RunE:  runNodeList,
	}
)

func init() {
	nodeCmd.AddCommand(nodeResolveCmd)
	nodeCmd.AddCommand(nodeListCmd)
}

// newResolverFromConfig builds a resolver from the loaded config, or errors
// when resolution is not configured.
func newResolverFromConfig() (*nodever.Resolver, error) {
	if cfg.Node.Disabled {
		return nil, fmt.Errorf("node version resolution is disabled in config")
	}
	if cfg.Node.ToolName == "" {
		return nil, fmt.Errorf("node.tool_name is not set in config; nothing to resolve")
	}
	var opts []nodever.Option
	if cfg.Node.VersionsDir != "" {
		opts = append(opts, nodever.WithVersionsDir(cfg.Node.VersionsDir))
	}
	if len(cfg.Node.ProbeArgs) > 0 {
		opts = append(opts, nodever.WithProbeArgs(cfg.Node.ProbeArgs))
	}
	return nodever.NewResolver(cfg.Node.ToolName, opts...), nil
}

func runNodeResolve(cmd *cobra.Command, _ []string) error {
	resolver, err := newResolverFromConfig()
	if err != nil {
		return err
	}

	version, found := resolver.Resolve(cmd.Context())
	if !found {
		fmt.Println(WarningStyle.Render("not found:") +
			fmt.Sprintf(" no installed Node.js version exposes %q; commands will use the ambient environment", cfg.Node.ToolName))
		return nil
	}

	fmt.Println(SuccessStyle.Render("✓") + " " + KeyStyle.Render(cfg.Node.ToolName) + " resolved to Node.js " + version)
	return nil
}

func runNodeList(_ *cobra.Command, _ []string) error {
	resolver, err := newResolverFromConfig()
	if err != nil {
		return err
	}

	versions, err := resolver.Installed()
	if err != nil {
		return fmt.Errorf("failed to enumerate installed versions: %w", err)
	}
	if len(versions) == 0 {
		fmt.Println(SubtitleStyle.Render("no installed Node.js versions found"))
		return nil
	}
	for _, v := range versions {
		fmt.Println(v)
	}
	return nil
}
