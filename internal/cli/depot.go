package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/voltron/internal/engine"
)

var (
	deployRef         engine.PackageRef
	deployStageDir    string
	deployManifestDir string

	deleteRef engine.PackageRef

	serveAddr string
)

var depotCmd = &cobra.Command{
	Use:   "depot",
	Short: "Manage packages in a depot",
	Long: `Manage packages in a depot.

A depot stores manifests under manifestfiles/ and file contents under
datafiles/<package>/<sha1>. Mutations require a local depot (a directory or
file:// location); install can read from http(s):// and s3:// depots too.`,
}

var depotListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List packages in the depot",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.List(&engine.ListRequest{Depot: depotFlag})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSection(fmt.Sprintf("Packages in %s", result.Depot))
		if len(result.Packages) == 0 {
			PrintEmptyState("No packages found")
			return nil
		}
		PrintList(result.Packages, 1)
		_, _ = fmt.Fprintln(out)
		PrintInfo(PrintCount(len(result.Packages), "package", "packages"))
		return nil
	},
}

var depotAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Publish a new package to the depot",
	Long: `Publish a new package to the depot.

The manifest is read from <manifest-dir>/<package>-<version>-<platform>.json
and every file it names must be present, with matching digest and mode, under
the staging directory. Adding a package that already exists fails; use
"depot update" to replace it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd, false)
	},
}

var depotUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace an existing package in the depot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeploy(cmd, true)
	},
}

func runDeploy(cmd *cobra.Command, update bool) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	eng, err := newEngine()
	if err != nil {
		return err
	}

	result, err := eng.Deploy(ctx, &engine.DeployRequest{
		PackageRef:  deployRef,
		Depot:       depotFlag,
		StageDir:    deployStageDir,
		ManifestDir: deployManifestDir,
		Update:      update,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	verb := "Added"
	if result.Updated {
		verb = "Updated"
	}
	PrintSuccess(fmt.Sprintf("%s %s", verb, result.Identity))
	PrintLabelValue("Depot", result.Depot)
	PrintLabelValue("Files", PrintCount(result.Files, "file", "files"))
	PrintLabelValue("Took", result.Duration.String())
	return nil
}

var depotDeleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"rm"},
	Short:   "Remove a package from the depot",
	Long: `Remove a package from the depot.

Removal is best effort: failures to remove the manifest or blobs are logged
as warnings and the command still succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Delete(ctx, &engine.DeleteRequest{
			PackageRef: deleteRef,
			Depot:      depotFlag,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		if !result.Existed {
			PrintWarning(fmt.Sprintf("%s was not in %s", result.Identity, result.Depot))
			return nil
		}
		PrintSuccess(fmt.Sprintf("Deleted %s", result.Identity))
		return nil
	},
}

var depotServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local depot over HTTP",
	Long: `Serve a local depot over HTTP until interrupted.

The server exposes manifestfiles/ and datafiles/ in the depot layout, so
"install --depot http://host:port" can read from it, plus /packages,
/healthz and Prometheus /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		eng, err := newEngine()
		if err != nil {
			return err
		}

		return eng.Serve(ctx, &engine.ServeRequest{
			Depot: depotFlag,
			Addr:  serveAddr,
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{depotAddCmd, depotUpdateCmd} {
		addPackageFlags(cmd, &deployRef)
		cmd.Flags().StringVar(&deployStageDir, "stage-dir", "", "Staging directory holding the package files")
		cmd.Flags().StringVar(&deployManifestDir, "manifest-dir", "", "Directory holding the package manifest")
		_ = cmd.MarkFlagRequired("stage-dir")
		_ = cmd.MarkFlagRequired("manifest-dir")
	}

	addPackageFlags(depotDeleteCmd, &deleteRef)

	depotServeCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config, :8080)")

	depotCmd.AddCommand(depotListCmd)
	depotCmd.AddCommand(depotAddCmd)
	depotCmd.AddCommand(depotUpdateCmd)
	depotCmd.AddCommand(depotDeleteCmd)
	depotCmd.AddCommand(depotServeCmd)
}
