package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"activation-server/internal/auth"
	"activation-server/internal/database"
	"activation-server/internal/entitlement"
)

// operator identifies CLI-driven changes in the audit trail
var operator = entitlement.Actor{Kind: entitlement.ActorAdmin, ID: "cli"}

func main() {
	fmt.Println("========================================")
	fmt.Println(" Activation Administration Tool")
	fmt.Println("========================================")
	fmt.Println()

	db, err := connect()
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	hasher := auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength)
	service := entitlement.NewService(repo, hasher, entitlement.SystemClock(), entitlement.Config{})

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Inspect device")
		fmt.Println("  2. Show device history")
		fmt.Println("  3. Create reseller")
		fmt.Println("  4. Top up reseller credits")
		fmt.Println("  5. Grant lifetime")
		fmt.Println("  6. Force expire device")
		fmt.Println("  7. Show stats")
		fmt.Println("  8. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			inspectDevice(reader, service)
		case "2":
			showHistory(reader, repo)
		case "3":
			createReseller(reader, service)
		case "4":
			topUpReseller(reader, service)
		case "5":
			grantLifetime(reader, repo, service)
		case "6":
			expireDevice(reader, repo, service)
		case "7":
			showStats(repo)
		case "8":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func connect() (*database.DB, error) {
	cfg := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "activation"),
		Password: getEnv("DB_PASSWORD", "activation_password"),
		Database: getEnv("DB_NAME", "activation"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	return database.NewDB(cfg)
}

func inspectDevice(reader *bufio.Reader, service *entitlement.Service) {
	fmt.Print("\nDevice code: ")
	code, _ := reader.ReadString('\n')
	code = strings.TrimSpace(code)

	device, err := service.GetStatus(context.Background(), code)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  ID:       %s\n", device.ID)
	fmt.Printf("  Code:     %s\n", device.Code)
	fmt.Printf("  Status:   %s\n", device.Status)
	fmt.Printf("  Lifetime: %v\n", device.Lifetime)
	if device.TrialStartedAt != nil {
		fmt.Printf("  Trial:    %s until %s\n",
			device.TrialStartedAt.Format("2006-01-02"),
			device.TrialExpiresAt.Format("2006-01-02"))
	}
	if device.ActivatedUntil != nil {
		fmt.Printf("  Active:   until %s\n", device.ActivatedUntil.Format("2006-01-02 15:04"))
	}
	if device.IsBanned {
		reason := ""
		if device.BannedReason != nil {
			reason = *device.BannedReason
		}
		fmt.Printf("  BANNED:   %s\n", reason)
	}
	if device.ResellerID != nil {
		fmt.Printf("  Reseller: %s\n", *device.ResellerID)
	}
	fmt.Println("========================================")
}

func showHistory(reader *bufio.Reader, repo *database.Repository) {
	fmt.Print("\nDevice ID: ")
	id, _ := reader.ReadString('\n')
	id = strings.TrimSpace(id)

	entries, total, err := repo.ListHistory(context.Background(), id, 50, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("\n%d entries (showing up to 50, oldest first)\n", total)
	fmt.Println("========================================")
	for _, e := range entries {
		fmt.Printf("  %s  %-22s %s -> %s  [%s %s]\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Action, e.PrevStatus, e.NewStatus, e.ActorKind, e.ActorID)
		if e.Detail != "" {
			fmt.Printf("      %s\n", e.Detail)
		}
	}
	fmt.Println("========================================")
}

func createReseller(reader *bufio.Reader, service *entitlement.Service) {
	fmt.Print("\nEmail: ")
	email, _ := reader.ReadString('\n')
	fmt.Print("Name: ")
	name, _ := reader.ReadString('\n')
	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	fmt.Print("Initial credits: ")
	creditsInput, _ := reader.ReadString('\n')

	credits, err := strconv.Atoi(strings.TrimSpace(creditsInput))
	if err != nil || credits < 0 {
		fmt.Println("Invalid credit amount")
		return
	}

	reseller, err := service.CreateReseller(context.Background(),
		strings.TrimSpace(email), strings.TrimSpace(name), strings.TrimSpace(password), credits)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  Reseller ID: %s\n", reseller.ID)
	fmt.Printf("  Email:       %s\n", reseller.Email)
	fmt.Printf("  Credits:     %d\n", reseller.Credits)
	fmt.Println("========================================")
}

func topUpReseller(reader *bufio.Reader, service *entitlement.Service) {
	fmt.Print("\nReseller ID: ")
	id, _ := reader.ReadString('\n')
	fmt.Print("Amount: ")
	amountInput, _ := reader.ReadString('\n')

	amount, err := strconv.Atoi(strings.TrimSpace(amountInput))
	if err != nil {
		fmt.Println("Invalid amount")
		return
	}

	reseller, err := service.TopUpReseller(context.Background(), strings.TrimSpace(id), amount)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("New balance: %d credits\n", reseller.Credits)
}

func grantLifetime(reader *bufio.Reader, repo *database.Repository, service *entitlement.Service) {
	device, ok := resolveDevice(reader, repo)
	if !ok {
		return
	}

	device, err := service.ActivateLifetime(context.Background(), device.ID, operator)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Device %s is now %s\n", device.Code, device.Status)
}

func expireDevice(reader *bufio.Reader, repo *database.Repository, service *entitlement.Service) {
	device, ok := resolveDevice(reader, repo)
	if !ok {
		return
	}

	fmt.Print("Force expire this device? (y/n): ")
	confirm, _ := reader.ReadString('\n')
	if strings.TrimSpace(strings.ToLower(confirm)) != "y" {
		fmt.Println("Cancelled")
		return
	}

	device, err := service.ExpireDevice(context.Background(), device.ID, operator)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Device %s is now %s\n", device.Code, device.Status)
}

func resolveDevice(reader *bufio.Reader, repo *database.Repository) (*entitlement.Device, bool) {
	fmt.Print("\nDevice code: ")
	code, _ := reader.ReadString('\n')
	code = strings.TrimSpace(code)

	device, err := repo.GetDeviceByCode(context.Background(), code)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	if device == nil {
		fmt.Println("Device not found")
		return nil, false
	}
	return device, true
}

func showStats(repo *database.Repository) {
	stats, err := repo.GetStats(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  Devices:   %d total\n", stats.TotalDevices)
	for status, count := range stats.DevicesByStatus {
		fmt.Printf("    %-9s %d\n", status, count)
	}
	fmt.Printf("  Resellers: %d (%d credits outstanding)\n", stats.TotalResellers, stats.CreditsOutstanding)
	fmt.Printf("  Paid activations, last 7 days: %d\n", stats.RecentActivations)
	fmt.Println("========================================")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
