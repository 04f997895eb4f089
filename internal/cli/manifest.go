package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/voltron/internal/engine"
)

var (
	genfileRef       engine.PackageRef
	genfileStageDir  string
	genfileTargetDir string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Author package manifests",
	Long: `Author package manifests.

A manifest lists a package's dependencies, directories and files, with the
SHA-1 digest and permission bits of every file.`,
}

var manifestGenfileCmd = &cobra.Command{
	Use:   "genfile",
	Short: "Generate a manifest from a staging directory",
	Long: `Generate <package>-<version>-<platform>.json by walking a staging directory.

Every directory and regular file under the staging directory is recorded.
The "depends" list is left empty; edit the file to declare dependencies.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.GenerateManifest(&engine.GenerateManifestRequest{
			PackageRef: genfileRef,
			StageDir:   genfileStageDir,
			TargetDir:  genfileTargetDir,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSuccess(fmt.Sprintf("Generated manifest for %s", result.Identity))
		PrintLabelValue("Path", result.Path)
		PrintLabelValue("Contents", fmt.Sprintf("%s, %s",
			PrintCount(result.Dirs, "directory", "directories"),
			PrintCount(result.Files, "file", "files")))
		return nil
	},
}

var manifestGensha1Cmd = &cobra.Command{
	Use:   "gensha1 <file>",
	Short: "Print the SHA-1 digest of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		digest, err := eng.HashFile(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]string{"path": args[0], "sha1": digest})
		}
		PrintInfo(digest)
		return nil
	},
}

// addPackageFlags registers the required --package/--version/--platform
// triple on cmd.
func addPackageFlags(cmd *cobra.Command, ref *engine.PackageRef) {
	cmd.Flags().StringVar(&ref.Package, "package", "", "Package name")
	cmd.Flags().StringVar(&ref.Version, "version", "", "Package version")
	cmd.Flags().StringVar(&ref.Platform, "platform", "", "Package platform")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("platform")
}

func init() {
	addPackageFlags(manifestGenfileCmd, &genfileRef)
	manifestGenfileCmd.Flags().StringVar(&genfileStageDir, "stage-dir", "", "Staging directory to describe")
	manifestGenfileCmd.Flags().StringVar(&genfileTargetDir, "target-dir", "", "Directory to write the manifest to (default: current directory)")
	_ = manifestGenfileCmd.MarkFlagRequired("stage-dir")

	manifestCmd.AddCommand(manifestGenfileCmd)
	manifestCmd.AddCommand(manifestGensha1Cmd)
}
