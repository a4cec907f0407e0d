/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/qrtrack/apiserver/internal/scan"
	"github.com/spf13/cobra"
)

var (
	scanServer   string
	scanAction   string
	scanEmail    string
	scanPassword string
)

// scanCmd drives one scan attempt from still images instead of a live
// camera: each image file is replayed as a frame.
var scanCmd = &cobra.Command{
	Use:   "scan [frames...]",
	Short: "Scans image frames and resolves the decoded QR code",
	Long: `Replays image files as camera frames, decodes the first QR code found
and posts it to the backend for resolution. Usage:

	qrtrack scan --server http://localhost:8080 --email you@example.com --password secret frame.png
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client := scan.NewClient(scanServer, nil)
		if scanEmail != "" {
			if err := client.Login(ctx, scanEmail, scanPassword); err != nil {
				return fmt.Errorf("login: %w", err)
			}
		}

		session := scan.NewSession(scan.NewFileCamera(args...), scan.NewQRDecoder(), client, scanAction)
		result, err := session.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("qr %s -> %s\n", result.QRID, result.Status)
		if result.DestinationURL != "" {
			fmt.Println(result.DestinationURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanServer, "server", "http://localhost:8080", "backend base URL")
	scanCmd.Flags().StringVar(&scanAction, "action", "", "scan action: activate, deactivate or empty for a generic scan")
	scanCmd.Flags().StringVar(&scanEmail, "email", "", "account email")
	scanCmd.Flags().StringVar(&scanPassword, "password", "", "account password")
}
