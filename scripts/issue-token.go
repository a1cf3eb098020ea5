package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/repository"
	"github.com/whalix/dashboard-server/internal/util"
)

// Issues a dashboard access token. With DATABASE_URL set the user is created
// as well, otherwise only the token and its hash are printed.
func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/issue-token.go <tenantId> <businessName> <sector> [firstName] [phone]\n")
		os.Exit(1)
	}

	tenantID, businessName, sector := os.Args[1], os.Args[2], model.BusinessSector(os.Args[3])
	if !util.IsValidTenantID(tenantID) {
		fail(fmt.Errorf("invalid tenant id %q", tenantID))
	}
	if !sector.Valid() {
		fail(fmt.Errorf("invalid sector %q", sector))
	}

	token, err := util.GenerateToken()
	if err != nil {
		fail(err)
	}
	hash := util.HashToken(token)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Printf("token: %s\nhash:  %s\n", token, hash)
		return
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		fail(err)
	}
	defer db.Close()

	params := model.CreateDashboardUserParams{
		TenantID:       tenantID,
		BusinessName:   businessName,
		BusinessSector: sector,
		TokenHash:      hash,
	}
	if len(os.Args) > 4 {
		params.FirstName = os.Args[4]
	}
	if len(os.Args) > 5 {
		params.Phone = os.Args[5]
	}

	user, err := repository.NewDashboardUserRepository(db.DB).Create(context.Background(), params)
	if err != nil {
		fail(err)
	}

	fmt.Printf("user:  %s\ntoken: %s\n", user.ID, token)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
