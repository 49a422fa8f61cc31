package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xhd193694/ninja/pkg/auth"
)

var keysFlags struct {
	id string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage pre-shared login keys",
	Long: `Manage the pre-shared keys that gate POST /auth/token.

Keys are stored bcrypt-hashed in a YAML key file; the plaintext exists
only in the operator's hands. The gateway reloads the file on change
when auth.watch_key_file is set.

Subcommands:
  generate - Generate a random key and print its key-file entry
  hash     - Hash an existing key for the key file

Examples:
  # Generate a fresh key for a new operator
  ninja keys generate --id ops-2026

  # Hash a key you already distribute
  ninja keys hash --id legacy`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random login key",
	Long: `Generate a random login key and print both the plaintext (hand it to
the key holder) and the YAML entry to append to the key file.`,
	RunE: generateLoginKey,
}

var keysHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash a login key",
	Long:  `Read a key from the terminal and print its key-file entry.`,
	RunE:  hashLoginKey,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysHashCmd)

	keysCmd.PersistentFlags().StringVar(&keysFlags.id, "id", "", "key id (required)")
}

func generateLoginKey(cmd *cobra.Command, args []string) error {
	if keysFlags.id == "" {
		return fmt.Errorf("--id is required")
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate key material: %w", err)
	}
	secret := hex.EncodeToString(raw)

	hash, err := auth.HashKey(secret)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	fmt.Printf("Key (give to the holder, it is not stored):\n  %s\n\n", secret)
	printKeyEntry(keysFlags.id, hash)
	return nil
}

func hashLoginKey(cmd *cobra.Command, args []string) error {
	if keysFlags.id == "" {
		return fmt.Errorf("--id is required")
	}

	fmt.Fprint(os.Stderr, "Key: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read key: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return fmt.Errorf("key must not be empty")
	}

	hash, err := auth.HashKey(secret)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	printKeyEntry(keysFlags.id, hash)
	return nil
}

func printKeyEntry(id, hash string) {
	fmt.Println("Key file entry:")
	fmt.Println("keys:")
	fmt.Printf("  - id: %s\n", id)
	fmt.Printf("    hash: %q\n", hash)
}
