// presencectl is the operator tool for the presence backend: it derives
// receiver secrets, generates device secrets, and simulates the full
// device → receiver → backend report path against a running instance.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/hkdf"

	"presence-backend/internal/receiver"
	"presence-backend/internal/token"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "presencectl",
	Short: "Provisioning and simulation tool for the presence backend",
}

// secret command
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate and derive protocol secrets",
}

var (
	secretOrg      string
	secretReceiver string
	secretMaster   string
)

var secretReceiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Derive a receiver secret from an org master secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		master, err := hex.DecodeString(secretMaster)
		if err != nil || len(master) == 0 {
			return fmt.Errorf("--master must be a non-empty hex string")
		}

		// HKDF keeps receiver secrets independent: leaking one receiver's
		// secret reveals nothing about its siblings or the master.
		info := fmt.Sprintf("receiver-secret:%s:%s", secretOrg, secretReceiver)
		h := hkdf.New(sha256.New, master, nil, []byte(info))
		secret := make([]byte, 32)
		if _, err := io.ReadFull(h, secret); err != nil {
			return fmt.Errorf("failed to derive receiver secret: %w", err)
		}

		fmt.Printf("org_id:          %s\n", secretOrg)
		fmt.Printf("receiver_id:     %s\n", secretReceiver)
		fmt.Printf("receiver_secret: %s\n", hex.EncodeToString(secret))
		return nil
	},
}

var secretDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Generate a fresh device secret and enrollment ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := make([]byte, token.SecretSize)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return fmt.Errorf("failed to generate device secret: %w", err)
		}

		fmt.Printf("device_id:     %s\n", uuid.New().String())
		fmt.Printf("device_secret: %s\n", hex.EncodeToString(secret))
		return nil
	},
}

// simulate command
var (
	simBackend        string
	simOrg            string
	simReceiver       string
	simReceiverSecret string
	simDeviceSecret   string
	simSlotSeconds    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a token, sign a report as a receiver, and post it",
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceSecret, err := hex.DecodeString(simDeviceSecret)
		if err != nil || len(deviceSecret) != token.SecretSize {
			return fmt.Errorf("--device-secret must be %d hex-encoded bytes", token.SecretSize)
		}
		receiverSecret, err := hex.DecodeString(simReceiverSecret)
		if err != nil || len(receiverSecret) == 0 {
			return fmt.Errorf("--receiver-secret must be a non-empty hex string")
		}

		now := time.Now()
		slotDuration := time.Duration(simSlotSeconds) * time.Second
		slot := token.SlotAt(now, slotDuration)
		prefix, mac := token.Generate(deviceSecret, slot)

		// Round-trip through the broadcast codec, the same path a real
		// frame takes over the radio.
		frame := token.Payload{
			Version:  token.Version,
			TimeSlot: slot,
			Prefix:   prefix,
			MAC:      mac,
		}.Encode()
		captured, err := token.Decode(frame[:])
		if err != nil {
			return fmt.Errorf("broadcast frame round-trip failed: %w", err)
		}

		signer := receiver.NewSigner(simOrg, simReceiver, receiverSecret)
		report, err := signer.Sign(captured, now)
		if err != nil {
			return fmt.Errorf("failed to sign report: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		result, err := receiver.NewClient(simBackend).SendReport(ctx, report)
		if err != nil {
			return fmt.Errorf("failed to submit report: %w", err)
		}

		fmt.Printf("time_slot:    %d\n", slot)
		fmt.Printf("token_prefix: %s\n", report.TokenPrefix)
		fmt.Printf("event_id:     %s\n", result.EventID)
		fmt.Printf("status:       %s\n", result.Status)
		return nil
	},
}

func init() {
	secretReceiverCmd.Flags().StringVar(&secretOrg, "org", "", "org ID")
	secretReceiverCmd.Flags().StringVar(&secretReceiver, "receiver", "", "receiver ID")
	secretReceiverCmd.Flags().StringVar(&secretMaster, "master", "", "org master secret (hex)")
	secretReceiverCmd.MarkFlagRequired("org")
	secretReceiverCmd.MarkFlagRequired("receiver")
	secretReceiverCmd.MarkFlagRequired("master")

	simulateCmd.Flags().StringVar(&simBackend, "backend", "http://localhost:8080", "backend base URL")
	simulateCmd.Flags().StringVar(&simOrg, "org", "", "org ID")
	simulateCmd.Flags().StringVar(&simReceiver, "receiver", "", "receiver ID")
	simulateCmd.Flags().StringVar(&simReceiverSecret, "receiver-secret", "", "receiver secret (hex)")
	simulateCmd.Flags().StringVar(&simDeviceSecret, "device-secret", "", "device secret (hex)")
	simulateCmd.Flags().IntVar(&simSlotSeconds, "slot-seconds", 15, "slot duration in seconds")
	simulateCmd.MarkFlagRequired("org")
	simulateCmd.MarkFlagRequired("receiver")
	simulateCmd.MarkFlagRequired("receiver-secret")
	simulateCmd.MarkFlagRequired("device-secret")

	secretCmd.AddCommand(secretReceiverCmd, secretDeviceCmd)
	rootCmd.AddCommand(secretCmd, simulateCmd)
}
