// Command seed loads the fixture file into an empty database: the demo
// accounts, patient profiles, treatment plans, plus a dental record and a
// pair of appointments per patient.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dentistplus/clinic-api/internal/config"
	"github.com/dentistplus/clinic-api/internal/database"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

type fixtureFile struct {
	Users []struct {
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		Email    string   `yaml:"email"`
		Roles    []string `yaml:"roles"`
	} `yaml:"users"`

	Profiles []struct {
		Username              string `yaml:"username"`
		Dentist               string `yaml:"dentist"`
		FirstName             string `yaml:"firstName"`
		LastName              string `yaml:"lastName"`
		DateOfBirth           string `yaml:"dateOfBirth"`
		ContactPhone          string `yaml:"contactPhone"`
		Address               string `yaml:"address"`
		MedicalHistorySummary string `yaml:"medicalHistorySummary"`
		InsuranceDetails      string `yaml:"insuranceDetails"`
	} `yaml:"profiles"`

	Plans []struct {
		Patient     string `yaml:"patient"`
		PlanName    string `yaml:"planName"`
		Description string `yaml:"description"`
		Procedures  []struct {
			ProcedureName string   `yaml:"procedureName"`
			ProcedureCode string   `yaml:"procedureCode"`
			ToothNumbers  []string `yaml:"toothNumbers"`
			CostEstimate  string   `yaml:"costEstimate"`
			Status        string   `yaml:"status"`
		} `yaml:"procedures"`
	} `yaml:"plans"`
}

func main() {
	fixturePath := flag.String("fixtures", "fixtures/seed.yaml", "path to the fixture file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	raw, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to read fixtures: %v", err)
	}
	var fixtures fixtureFile
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		log.Fatalf("Failed to parse fixtures: %v", err)
	}

	ctx := context.Background()
	client, err := database.NewMongoClient(ctx, &database.Config{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		MinPoolSize:            cfg.Mongo.MinPoolSize,
		ConnectTimeout:         cfg.Mongo.ConnTimeout,
		ServerSelectionTimeout: cfg.Mongo.SelectionTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer database.Disconnect(client)

	db := client.Database(cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	st := store.NewMongo(db)

	if err := seed(ctx, st, &fixtures); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Sample data seeded successfully")
}

func seed(ctx context.Context, st *store.Store, fixtures *fixtureFile) error {
	if len(fixtures.Users) > 0 {
		// Only seed an empty database.
		if exists, err := st.Users.ExistsByUsername(ctx, fixtures.Users[0].Username); err != nil {
			return err
		} else if exists {
			log.Println("Database already seeded, nothing to do")
			return nil
		}
	}

	now := time.Now()
	users := make(map[string]*model.User, len(fixtures.Users))
	for _, f := range fixtures.Users {
		roles := make(model.Roles, 0, len(f.Roles))
		for _, r := range f.Roles {
			roles = append(roles, model.Role(r))
		}
		u := &model.User{
			Username:  f.Username,
			Password:  f.Password,
			Email:     f.Email,
			Roles:     roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.Users.Create(ctx, u); err != nil {
			return err
		}
		users[u.Username] = u
	}

	profiles := make(map[string]*model.PatientProfile, len(fixtures.Profiles))
	dentists := make(map[string]*model.User, len(fixtures.Profiles))
	for _, f := range fixtures.Profiles {
		owner, ok := users[f.Username]
		if !ok {
			log.Printf("Skipping profile for unknown user %s", f.Username)
			continue
		}
		dob, err := time.Parse("2006-01-02", f.DateOfBirth)
		if err != nil {
			return err
		}
		p := &model.PatientProfile{
			UserID:                owner.ID,
			FirstName:             f.FirstName,
			LastName:              f.LastName,
			DateOfBirth:           dob,
			ContactPhone:          f.ContactPhone,
			Address:               f.Address,
			MedicalHistorySummary: f.MedicalHistorySummary,
			InsuranceDetails:      f.InsuranceDetails,
		}
		if err := st.Profiles.Create(ctx, p); err != nil {
			return err
		}
		profiles[f.Username] = p
		if d, ok := users[f.Dentist]; ok {
			dentists[f.Username] = d
		}
	}

	for _, f := range fixtures.Plans {
		profile, ok := profiles[f.Patient]
		if !ok {
			log.Printf("Skipping plan for unknown patient %s", f.Patient)
			continue
		}
		plan := &model.TreatmentPlan{
			PatientID:   profile.ID,
			PlanName:    f.PlanName,
			Description: f.Description,
			Procedures:  make([]model.PlannedProcedure, 0, len(f.Procedures)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, fp := range f.Procedures {
			cost, err := model.MoneyFromString(fp.CostEstimate)
			if err != nil {
				return err
			}
			status := fp.Status
			if status == "" {
				status = model.ProcedurePlanned
			}
			plan.Procedures = append(plan.Procedures, model.PlannedProcedure{
				ID:            uuid.NewString(),
				ProcedureName: fp.ProcedureName,
				ProcedureCode: fp.ProcedureCode,
				ToothNumbers:  fp.ToothNumbers,
				CostEstimate:  cost,
				Status:        status,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err := st.Plans.Create(ctx, plan); err != nil {
			return err
		}
	}

	// Each patient gets a starter dental record and two appointments with
	// their assigned dentist: one completed checkup a month back and one
	// upcoming follow-up.
	for username, profile := range profiles {
		dentist := dentists[username]
		if dentist == nil {
			continue
		}
		if err := seedRecord(ctx, st, profile, dentist, now); err != nil {
			return err
		}
		if err := seedAppointments(ctx, st, profile, dentist, now); err != nil {
			return err
		}
	}

	return nil
}

func seedRecord(ctx context.Context, st *store.Store, profile *model.PatientProfile, dentist *model.User, now time.Time) error {
	first := strings.ToLower(profile.FirstName)
	rec := &model.DentalRecord{
		PatientID: profile.ID,
		DentalChart: model.DentalChart{
			"tooth_18": {
				"occlusal": "FILLING",
				"buccal":   "HEALTHY",
				"lingual":  "HEALTHY",
				"mesial":   "HEALTHY",
				"distal":   "HEALTHY",
			},
			"tooth_17": {
				"occlusal": "CARIES",
				"buccal":   "HEALTHY",
				"lingual":  "PLAQUE",
				"mesial":   "HEALTHY",
				"distal":   "HEALTHY",
			},
		},
		Attachments: []model.Attachment{
			{
				Filename:   "panto_" + first + "_2023.jpg",
				FileType:   "PANTOMOGRAPHIC",
				UploadDate: now,
				StorageURL: "/storage/images/panto_" + profile.ID + "_2023.jpg",
			},
			{
				Filename:   "intraoral_" + first + "_2023.jpg",
				FileType:   "INTRAORAL",
				UploadDate: now,
				StorageURL: "/storage/images/intraoral_" + profile.ID + "_2023.jpg",
			},
		},
		GeneralNotes: []model.ClinicalNote{
			{
				Note:        "Initial examination completed. Good oral hygiene. Recommending regular cleanings every 6 months.",
				Timestamp:   now,
				DentistName: dentist.Username,
			},
			{
				Note:        "Tooth #17 shows signs of decay. Treatment plan created for composite filling.",
				Timestamp:   now,
				DentistName: dentist.Username,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return st.Records.Create(ctx, rec)
}

func seedAppointments(ctx context.Context, st *store.Store, profile *model.PatientProfile, dentist *model.User, now time.Time) error {
	past := &model.Appointment{
		PatientID:       profile.ID,
		DentistID:       dentist.ID,
		AppointmentDate: now.AddDate(0, 0, -30),
		AppointmentType: "Regular Checkup",
		Status:          model.AppointmentCompleted,
		Notes:           "Routine examination and cleaning completed successfully.",
		DurationMinutes: 30,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.Appointments.Create(ctx, past); err != nil {
		return err
	}

	future := &model.Appointment{
		PatientID:       profile.ID,
		DentistID:       dentist.ID,
		AppointmentDate: now.AddDate(0, 0, 15),
		AppointmentType: "Follow-up Treatment",
		Status:          model.AppointmentScheduled,
		Notes:           "Follow-up for ongoing treatment plan.",
		DurationMinutes: 60,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return st.Appointments.Create(ctx, future)
}
