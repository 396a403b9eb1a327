package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"redemption-server/internal/infrastructure/keyring"
)

func keysCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Maintain the signing key file",
		Long: `Maintain the YAML signing key file read by the server.

After rotating, send SIGHUP to the server or call
POST /admin/keys/reload to pick up the new key.`,
	}
	cmd.PersistentFlags().StringVar(&path, "file", os.Getenv("SIGNING_KEYS_FILE"), "path to the signing key file")

	var genVersion string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a new key file with a single current key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return errors.New("--file is required")
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key file %s already exists, use rotate", path)
			}
			secret, err := keyring.GenerateSecret()
			if err != nil {
				return err
			}
			f := &keyring.File{}
			if err := f.Rotate(genVersion, secret, time.Now(), 0); err != nil {
				return err
			}
			if err := keyring.Save(path, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s with current key %s\n", path, genVersion)
			return nil
		},
	}
	generate.Flags().StringVar(&genVersion, "version", "v1", "version of the first key")
	cmd.AddCommand(generate)

	var (
		rotVersion string
		grace      time.Duration
	)
	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Add a new current key and schedule the previous one for retirement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return errors.New("--file is required")
			}
			if rotVersion == "" {
				return errors.New("--version is required")
			}
			f, err := keyring.Load(path)
			if err != nil {
				return err
			}
			previous := f.Current
			secret, err := keyring.GenerateSecret()
			if err != nil {
				return err
			}
			now := time.Now()
			if err := f.Rotate(rotVersion, secret, now, grace); err != nil {
				return err
			}
			if err := keyring.Save(path, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rotated %s -> %s, %s retires at %s\n",
				previous, rotVersion, previous, now.Add(grace).UTC().Format(time.RFC3339))
			return nil
		},
	}
	rotate.Flags().StringVar(&rotVersion, "version", "", "version of the new key")
	rotate.Flags().DurationVar(&grace, "grace", 5*time.Minute, "how long the previous key keeps verifying")
	cmd.AddCommand(rotate)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List key versions without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return errors.New("--file is required")
			}
			f, err := keyring.Load(path)
			if err != nil {
				return err
			}
			entries := append([]keyring.KeyEntry(nil), f.Keys...)
			sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
			for _, e := range entries {
				line := e.Version
				if e.Version == f.Current {
					line += " current"
				}
				if e.RetireAt != nil {
					line += " retires_at=" + e.RetireAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	})

	return cmd
}
