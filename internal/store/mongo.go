package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dentistplus/clinic-api/internal/model"
)

const (
	collUsers        = "users"
	collProfiles     = "patient_profiles"
	collRecords      = "dental_records"
	collPlans        = "treatment_plans"
	collAppointments = "appointments"
	collInvoices     = "invoices"
)

// NewMongo returns a Store backed by the given Mongo database.
func NewMongo(db *mongo.Database) *Store {
	return &Store{
		Users:        &mongoUsers{coll: db.Collection(collUsers)},
		Profiles:     &mongoProfiles{coll: db.Collection(collProfiles)},
		Records:      &mongoRecords{coll: db.Collection(collRecords)},
		Plans:        &mongoPlans{coll: db.Collection(collPlans)},
		Appointments: &mongoAppointments{coll: db.Collection(collAppointments)},
		Invoices:     &mongoInvoices{coll: db.Collection(collInvoices)},
	}
}

// EnsureIndexes creates the indexes the store queries rely on: the unique
// username/email constraints and the secondary index on embedded procedure
// ids that replaces the old scan-every-plan lookup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection(collUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collProfiles).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collPlans).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "patientId", Value: 1}}},
		{Keys: bson.D{{Key: "procedures.id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collAppointments).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "patientId", Value: 1}}},
		{Keys: bson.D{{Key: "dentistId", Value: 1}}},
		{Keys: bson.D{{Key: "appointmentDate", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(collInvoices).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "patientId", Value: 1}},
	})
	return err
}

func newDocumentID() string { return primitive.NewObjectID().Hex() }

func mapNoDocument(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocument
	}
	return err
}

type mongoUsers struct{ coll *mongo.Collection }

func (s *mongoUsers) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, u)
	return err
}

func (s *mongoUsers) ByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapNoDocument(err)
	}
	return &u, nil
}

func (s *mongoUsers) ByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := s.coll.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, mapNoDocument(err)
	}
	return &u, nil
}

func (s *mongoUsers) ByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"roles": role})
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *mongoUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	return n > 0, err
}

func (s *mongoUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	return n > 0, err
}

func (s *mongoUsers) Save(ctx context.Context, u *model.User) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	return err
}

func (s *mongoUsers) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type mongoProfiles struct{ coll *mongo.Collection }

func (s *mongoProfiles) Create(ctx context.Context, p *model.PatientProfile) error {
	if p.ID == "" {
		p.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return err
}

func (s *mongoProfiles) ByID(ctx context.Context, id string) (*model.PatientProfile, error) {
	var p model.PatientProfile
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapNoDocument(err)
	}
	return &p, nil
}

func (s *mongoProfiles) ByUserID(ctx context.Context, userID string) (*model.PatientProfile, error) {
	var p model.PatientProfile
	if err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&p); err != nil {
		return nil, mapNoDocument(err)
	}
	return &p, nil
}

func (s *mongoProfiles) All(ctx context.Context) ([]model.PatientProfile, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var profiles []model.PatientProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *mongoProfiles) SearchByName(ctx context.Context, query string) ([]model.PatientProfile, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	cursor, err := s.coll.Find(ctx, bson.M{"$or": []bson.M{
		{"firstName": pattern},
		{"lastName": pattern},
	}})
	if err != nil {
		return nil, err
	}
	var profiles []model.PatientProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *mongoProfiles) Save(ctx context.Context, p *model.PatientProfile) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	return err
}

func (s *mongoProfiles) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type mongoRecords struct{ coll *mongo.Collection }

func (s *mongoRecords) Create(ctx context.Context, r *model.DentalRecord) error {
	if r.ID == "" {
		r.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, r)
	return err
}

func (s *mongoRecords) ByPatient(ctx context.Context, patientID string) (*model.DentalRecord, error) {
	var r model.DentalRecord
	if err := s.coll.FindOne(ctx, bson.M{"patientId": patientID}).Decode(&r); err != nil {
		return nil, mapNoDocument(err)
	}
	return &r, nil
}

func (s *mongoRecords) Save(ctx context.Context, r *model.DentalRecord) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	return err
}

type mongoPlans struct{ coll *mongo.Collection }

func (s *mongoPlans) Create(ctx context.Context, p *model.TreatmentPlan) error {
	if p.ID == "" {
		p.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return err
}

func (s *mongoPlans) ByID(ctx context.Context, id string) (*model.TreatmentPlan, error) {
	var p model.TreatmentPlan
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapNoDocument(err)
	}
	return &p, nil
}

func (s *mongoPlans) ByPatient(ctx context.Context, patientID string) ([]model.TreatmentPlan, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"patientId": patientID})
	if err != nil {
		return nil, err
	}
	var plans []model.TreatmentPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *mongoPlans) ByProcedureID(ctx context.Context, procedureID string) (*model.TreatmentPlan, error) {
	var p model.TreatmentPlan
	if err := s.coll.FindOne(ctx, bson.M{"procedures.id": procedureID}).Decode(&p); err != nil {
		return nil, mapNoDocument(err)
	}
	return &p, nil
}

func (s *mongoPlans) Save(ctx context.Context, p *model.TreatmentPlan) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	return err
}

type mongoAppointments struct{ coll *mongo.Collection }

func (s *mongoAppointments) Create(ctx context.Context, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, a)
	return err
}

func (s *mongoAppointments) ByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mapNoDocument(err)
	}
	return &a, nil
}

func (s *mongoAppointments) ByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.find(ctx, bson.M{"patientId": patientID})
}

func (s *mongoAppointments) ByDentist(ctx context.Context, dentistID string) ([]model.Appointment, error) {
	return s.find(ctx, bson.M{"dentistId": dentistID})
}

func (s *mongoAppointments) ByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return s.find(ctx, bson.M{"appointmentDate": bson.M{"$gte": from, "$lt": to}})
}

func (s *mongoAppointments) find(ctx context.Context, filter bson.M) ([]model.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "appointmentDate", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var appointments []model.Appointment
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *mongoAppointments) Save(ctx context.Context, a *model.Appointment) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	return err
}

type mongoInvoices struct{ coll *mongo.Collection }

func (s *mongoInvoices) Create(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == "" {
		inv.ID = newDocumentID()
	}
	_, err := s.coll.InsertOne(ctx, inv)
	return err
}

func (s *mongoInvoices) ByID(ctx context.Context, id string) (*model.Invoice, error) {
	var inv model.Invoice
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return nil, mapNoDocument(err)
	}
	return &inv, nil
}

func (s *mongoInvoices) ByPatient(ctx context.Context, patientID string) ([]model.Invoice, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"patientId": patientID})
	if err != nil {
		return nil, err
	}
	var invoices []model.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *mongoInvoices) Save(ctx context.Context, inv *model.Invoice) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": inv.ID}, inv)
	return err
}
