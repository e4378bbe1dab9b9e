package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [package...]",
	Short: "Check that packages download from the release",
	Long: `Send an anonymous HEAD request to each package's public download URL. The
host answers with a redirect to storage when the asset is downloadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		pkgs, err := s.packages(args)
		if err != nil {
			return err
		}

		publisher := s.publisher()
		failed := 0
		for _, pkg := range pkgs {
			status, err := publisher.Verify(cmd.Context(), pkg)
			if err != nil || status != http.StatusFound {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d packages did not resolve for download", failed, len(pkgs))
		}
		return nil
	},
}
