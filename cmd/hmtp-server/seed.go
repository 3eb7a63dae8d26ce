package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/hmtp/hmtp/internal/domain/identity"
	"github.com/hmtp/hmtp/internal/domain/patient"
	"github.com/hmtp/hmtp/internal/domain/pharmacy"
	"github.com/hmtp/hmtp/internal/domain/scheduling"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/pkg/civil"
)

var specializations = []string{
	"Cardiology", "Dermatology", "General Practice", "Neurology",
	"Orthopedics", "Pediatrics", "Psychiatry", "Oncology",
}

type seedCounts struct {
	doctors   int
	patients  int
	medicines int
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate a tenant with demo staff, doctors, patients and medicines",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			password, _ := cmd.Flags().GetString("password")
			var n seedCounts
			n.doctors, _ = cmd.Flags().GetInt("doctors")
			n.patients, _ = cmd.Flags().GetInt("patients")
			n.medicines, _ = cmd.Flags().GetInt("medicines")

			if !db.ValidTenantID(tenantID) {
				return fmt.Errorf("invalid --tenant %q", tenantID)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			_ = gofakeit.Seed(time.Now().UnixNano())
			st := newStack(cfg, logger, pool, nil, nil)
			if err := seedTenant(ctx, st, tenantID, password, n); err != nil {
				return err
			}
			logger.Info().Str("tenant_id", tenantID).
				Int("doctors", n.doctors).
				Int("patients", n.patients).
				Int("medicines", n.medicines).
				Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().String("tenant", "demo-hospital", "Tenant to seed")
	cmd.Flags().String("password", "changeme123", "Password for the seeded staff accounts")
	cmd.Flags().Int("doctors", 5, "Number of doctors")
	cmd.Flags().Int("patients", 50, "Number of patients")
	cmd.Flags().Int("medicines", 20, "Number of medicines")
	return cmd
}

// seedTenant registers one account per role, then creates records as the
// tenant's admin so every row is audited like a real request.
func seedTenant(ctx context.Context, st *stack, tenantID, password string, n seedCounts) error {
	var admin *identity.User
	for _, role := range []string{
		auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse,
		auth.RolePharmacist, auth.RoleLabTechnician, auth.RolePatient,
	} {
		u, err := st.identity.Register(ctx, identity.Registration{
			Email:    fmt.Sprintf("%s@%s.example.com", role, tenantID),
			Password: password,
			FullName: gofakeit.Name(),
			Role:     role,
			TenantID: tenantID,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", role, err)
		}
		if role == auth.RoleAdmin {
			admin = u
		}
	}

	ctx = auth.WithPrincipal(ctx, &auth.Principal{
		UserID: admin.ID, Subject: admin.Email, TenantID: tenantID, Role: auth.RoleAdmin,
	})

	for i := 0; i < n.doctors; i++ {
		phone, email := gofakeit.Phone(), gofakeit.Email()
		d := &scheduling.Doctor{
			FirstName:      gofakeit.FirstName(),
			LastName:       gofakeit.LastName(),
			Specialization: specializations[gofakeit.Number(0, len(specializations)-1)],
			LicenseNumber:  fmt.Sprintf("LIC-%s-%05d", tenantID, i+1),
			Phone:          &phone,
			Email:          &email,
		}
		if err := st.scheduling.CreateDoctor(ctx, d); err != nil {
			return fmt.Errorf("create doctor: %w", err)
		}
		// Weekdays, 09:00 to 17:00.
		for day := 0; day < 5; day++ {
			if err := st.scheduling.AddAvailability(ctx, &scheduling.Availability{
				DoctorID:    d.ID,
				DayOfWeek:   day,
				StartTime:   civil.NewTimeOfDay(9, 0, 0),
				EndTime:     civil.NewTimeOfDay(17, 0, 0),
				IsAvailable: true,
			}); err != nil {
				return fmt.Errorf("add availability: %w", err)
			}
		}
	}

	for i := 0; i < n.patients; i++ {
		dob := gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC))
		gender, phone, email := gofakeit.Gender(), gofakeit.Phone(), gofakeit.Email()
		address := fmt.Sprintf("%s, %s", gofakeit.Street(), gofakeit.City())
		p := &patient.Patient{
			FirstName:   gofakeit.FirstName(),
			LastName:    gofakeit.LastName(),
			DateOfBirth: civil.NewDate(dob.Year(), dob.Month(), dob.Day()),
			Gender:      &gender,
			Phone:       &phone,
			Email:       &email,
			Address:     &address,
		}
		if err := st.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
	}

	for i := 0; i < n.medicines; i++ {
		expiry := time.Now().AddDate(0, gofakeit.Number(3, 36), 0)
		manufacturer := gofakeit.Company()
		m := &pharmacy.Medicine{
			Name:         fmt.Sprintf("%s %dmg", gofakeit.Word(), gofakeit.Number(1, 50)*10),
			Manufacturer: &manufacturer,
			Quantity:     gofakeit.Number(0, 500),
			UnitPrice:    gofakeit.Price(0.5, 120),
			ExpiryDate:   civil.NewDate(expiry.Year(), expiry.Month(), expiry.Day()),
		}
		if err := st.pharmacy.CreateMedicine(ctx, m); err != nil {
			return fmt.Errorf("create medicine: %w", err)
		}
	}
	return nil
}
