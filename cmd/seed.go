package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/util"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with demo appointments",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Store.Driver == "memory" {
			return fmt.Errorf("seed: the memory store does not outlive this command")
		}

		var rdb redis.UniversalClient
		if cfg.Store.Driver == "redis" {
			client, err := openRedis(cfg)
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = client.Close() }()
			rdb = client
		}

		st, err := openStores(cfg, rdb)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println(">> Seeding demo appointments...")
		n, err := seedAppointments(cmd.Context(), st.Appointments, cfg.Transport.CountryCode, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf(">> Seed completed: %d appointments\n", n)
		return nil
	},
}

// seedAppointments books one pending visit per demo patient, spread over the
// coming days.
func seedAppointments(ctx context.Context, store repository.AppointmentStore, countryCode string, now time.Time) (int, error) {
	patients := []struct {
		name, phone, service string
	}{
		{"Dana Levi", "050-111-2233", "Dental cleaning"},
		{"Yossi Cohen", "052-444-5566", "Annual checkup"},
		{"Maya Katz", "054-777-8899", "Physiotherapy"},
		{"Omer Azulay", "+972 53 123 4567", "Blood test"},
	}

	for i, p := range patients {
		at := now.AddDate(0, 0, i+1)
		a := model.Appointment{
			ID:        util.NewAt(now.Add(time.Duration(i) * time.Millisecond)),
			Name:      p.name,
			Phone:     util.NormalizePhone(p.phone, countryCode),
			Service:   p.service,
			Date:      at.Format("2006-01-02"),
			Time:      fmt.Sprintf("%02d:30", 9+i),
			Status:    model.AppointmentPending,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		}
		if err := store.Put(ctx, a); err != nil {
			return i, fmt.Errorf("put appointment for %q: %w", p.name, err)
		}
	}
	return len(patients), nil
}
