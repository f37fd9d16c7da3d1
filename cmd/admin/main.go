package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"crmchat/backend/internal/auth"
	"crmchat/backend/internal/config"
	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-admin <name> <email> <organization>
  token <admin_id>
  create-group <name> <creator_id> <participant_id>...
  unread <user_id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	ctx := context.Background()

	args := os.Args[2:]
	switch os.Args[1] {
	case "create-admin":
		if len(args) != 3 {
			fmt.Println("Usage: admin create-admin <name> <email> <organization>")
			os.Exit(1)
		}
		admin, err := createAdmin(ctx, storageSvc, args[0], args[1], args[2])
		if err != nil {
			log.Fatalf("Error creating admin: %v", err)
		}
		fmt.Printf("Admin %s created with id %s.\n", admin.Name, admin.ID)
	case "token":
		if len(args) != 1 {
			fmt.Println("Usage: admin token <admin_id>")
			os.Exit(1)
		}
		token, err := issueToken(ctx, storageSvc, cfg, args[0])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
	case "create-group":
		if len(args) < 2 {
			fmt.Println("Usage: admin create-group <name> <creator_id> <participant_id>...")
			os.Exit(1)
		}
		room, err := createGroup(ctx, storageSvc, args[0], args[1], args[2:])
		if err != nil {
			log.Fatalf("Error creating group: %v", err)
		}
		fmt.Printf("Group %s created with id %s (%d participants).\n", room.GroupName, room.ID, len(room.Participants))
	case "unread":
		if len(args) != 1 {
			fmt.Println("Usage: admin unread <user_id>")
			os.Exit(1)
		}
		if err := printUnread(ctx, storageSvc, args[0]); err != nil {
			log.Fatalf("Error reading counts: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createAdmin(ctx context.Context, s storage.Storage, name, email, organization string) (*models.Admin, error) {
	admin := &models.Admin{Name: name, Email: email, Organization: organization, Role: "admin"}
	if err := s.SaveAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

func issueToken(ctx context.Context, s storage.Storage, cfg *config.Config, adminID string) (string, error) {
	admin, err := s.GetAdminByID(ctx, adminID)
	if err != nil {
		return "", err
	}
	return auth.GenerateToken(admin.ID, admin.Organization, []byte(cfg.JWTSecret), cfg.TokenTTL)
}

func createGroup(ctx context.Context, s storage.Storage, name, creatorID string, participants []string) (*models.ChatRoom, error) {
	creator, err := s.GetAdminByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	room := &models.ChatRoom{
		GroupName:    name,
		Organization: creator.Organization,
		Creator:      creator.ID,
		Participants: []string{creator.ID},
	}
	for _, p := range participants {
		if !room.HasParticipant(p) {
			room.Participants = append(room.Participants, p)
		}
	}
	if err := s.SaveChatRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func printUnread(ctx context.Context, s storage.Storage, userID string) error {
	direct, err := s.UnreadCounts(ctx, userID)
	if err != nil {
		return err
	}
	groups, err := s.GroupUnreadCounts(ctx, userID)
	if err != nil {
		return err
	}
	printCounts("direct", direct)
	printCounts("group", groups)
	return nil
}

func printCounts(label string, counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s\t%s\t%d\n", label, k, counts[k])
	}
}
