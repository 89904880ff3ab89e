/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package keygen implements the "keygen" client subcommand, which
// writes a fresh AES encryption key to disk for a server's
// encryptionKeyFile (SPEC_FULL.md §4.3, encrypt stage).
package keygen

import (
	"fmt"
	"os"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
)

// NewCmd creates the "keygen" cobra command.
func NewCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "keygen [path]",
		Short: "Generate a random encryption key file for the encrypt stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch length {
			case 16, 24, 32:
			default:
				return fmt.Errorf("keygen: length must be 16, 24 or 32 (AES-128/192/256), got %d", length)
			}

			key, err := password.Generate(length, length/4, 0, false, true)
			if err != nil {
				return fmt.Errorf("keygen: generating key: %w", err)
			}

			if err := os.WriteFile(args[0], []byte(key), 0o600); err != nil {
				return fmt.Errorf("keygen: writing %s: %w", args[0], err)
			}

			fmt.Printf("wrote %d-byte encryption key to %s\n", length, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", 32, "key length in bytes (16, 24 or 32)")
	return cmd
}
