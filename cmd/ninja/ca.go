package main

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xhd193694/ninja/pkg/preauth/ca"
)

var caFlags struct {
	out        string
	commonName string
}

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the interception CA",
	Long: `Manage the certificate authority used by the pre-auth interception
proxy to forge per-host leaf certificates.

The CA must be installed in the trust store of every client whose TLS
traffic the pre-auth proxy intercepts.

Subcommands:
  generate - Generate a new CA certificate and key pair
  info     - Display details of an existing CA certificate

Examples:
  # Generate a CA pair into ./ca
  ninja ca generate --out ./ca

  # Inspect the CA certificate
  ninja ca info ./ca/ca.pem`,
}

var caGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a CA pair",
	Long: `Generate an ECDSA P-256 certificate authority for leaf forging.

The certificate is written world-readable; the key is written with
owner-only permissions.`,
	RunE: generateCA,
}

var caInfoCmd = &cobra.Command{
	Use:   "info <cert.pem>",
	Short: "Display CA certificate details",
	Args:  cobra.ExactArgs(1),
	RunE:  showCAInfo,
}

func init() {
	rootCmd.AddCommand(caCmd)
	caCmd.AddCommand(caGenerateCmd, caInfoCmd)

	caGenerateCmd.Flags().StringVarP(&caFlags.out, "out", "o", "./ca", "output directory")
	caGenerateCmd.Flags().StringVar(&caFlags.commonName, "cn", "ninja interception CA", "certificate common name")
}

func generateCA(cmd *cobra.Command, args []string) error {
	certPEM, keyPEM, err := ca.GenerateCA(caFlags.commonName)
	if err != nil {
		return fmt.Errorf("failed to generate CA: %w", err)
	}

	if err := os.MkdirAll(caFlags.out, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath := filepath.Join(caFlags.out, "ca.pem")
	keyPath := filepath.Join(caFlags.out, "ca.key")
	if err := ca.WriteCA(certPath, keyPath, certPEM, keyPEM); err != nil {
		return fmt.Errorf("failed to write CA pair: %w", err)
	}

	fmt.Printf("Certificate: %s\n", certPath)
	fmt.Printf("Key:         %s\n", keyPath)
	fmt.Println()
	fmt.Println("Install the certificate in client trust stores, then configure:")
	fmt.Println("preauth:")
	fmt.Println("  enabled: true")
	fmt.Printf("  ca_cert_file: %q\n", certPath)
	fmt.Printf("  ca_key_file: %q\n", keyPath)
	return nil
}

func showCAInfo(cmd *cobra.Command, args []string) error {
	certPEM, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return fmt.Errorf("%s is not a PEM certificate", args[0])
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	fmt.Println(ca.Describe(cert))
	return nil
}
