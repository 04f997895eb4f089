package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/voltron/internal/engine"
)

var (
	installRef       engine.PackageRef
	installDir       string
	installLayout    string
	installOnRefetch string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a package and its dependencies",
	Long: `Install a package and its dependencies from a depot.

Dependencies are installed first, depth first, each exactly once. A package
that is already installed is re-verified instead: every file is checked
against its manifest digest and mode, and damaged or missing files are fetched
again.

With --on-refetch-failure=abort, a file that still fails verification after
being fetched again stops the install with exit status 65.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Install(ctx, &engine.InstallRequest{
			PackageRef:       installRef,
			Depot:            depotFlag,
			InstallRoot:      installDir,
			Layout:           installLayout,
			OnRefetchFailure: installOnRefetch,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		verb := "Installed"
		if result.Reverified {
			verb = "Verified"
		}
		PrintSuccess(fmt.Sprintf("%s %s", verb, result.Identity))
		PrintLabelValue("Install root", result.InstallRoot)
		PrintLabelValue("Layout", result.Layout)
		PrintLabelValue("Took", result.Duration.String())

		if len(result.Installed) > 1 {
			PrintSection(PrintCount(len(result.Installed), "package", "packages"))
			PrintList(result.Installed, 1)
		}
		return nil
	},
}

func init() {
	addPackageFlags(installCmd, &installRef)
	installCmd.Flags().StringVar(&installDir, "install-dir", "", "Install root (default: install_root from config)")
	installCmd.Flags().StringVar(&installLayout, "layout", "", "Install layout: per-package or flat (default: layout from config)")
	installCmd.Flags().StringVar(&installOnRefetch, "on-refetch-failure", "", "On persistent corruption: error or abort (default: on_refetch_failure from config)")
}
