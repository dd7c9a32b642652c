package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/CertTrack/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CompanyID string             `bson:"companyId"`
	UpdatedAt *time.Time         `bson:"updatedAt,omitempty"`
}

type linksDoc struct {
	ReportURL      string `bson:"reportUrl"`
	FormatURL      string `bson:"formatUrl"`
	CertificateURL string `bson:"certificateUrl"`
}

type certificateDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	NumCert           int                `bson:"numCert"`
	Serial            string             `bson:"serial"`
	UploadDate        time.Time          `bson:"uploadDate"`
	Result            string             `bson:"result"`
	CompanyID         string             `bson:"companyId"`
	AssignedUsernames []string           `bson:"assignedUsernames"`
	Links             linksDoc           `bson:"links"`
}

type routingDoc struct {
	Report      string `bson:"report"`
	Format      string `bson:"format"`
	Certificate string `bson:"certificate"`
}

type configDoc struct {
	Key       string     `bson:"key"`
	Value     routingDoc `bson:"value"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

// MongoStore is the document-database record store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// NewMongoStore connects to uri and returns a store on database.
func NewMongoStore(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return NewMongoStoreWithClient(client, database, log), nil
}

// NewMongoStoreWithClient returns a store using an existing client.
func NewMongoStoreWithClient(client *mongo.Client, database string, log *zap.Logger) *MongoStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoStore{client: client, db: client.Database(database), log: log}
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the store relies on, including the
// unique (companyId, numCert) index.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "role", Value: 1}}},
		},
		certificatesCollection: {
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "numCert", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "serial", Value: 1}}},
		},
		configCollection: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, idx := range specs {
		names, err := m.db.Collection(coll).Indexes().CreateMany(ctx, idx)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		m.log.Debug("indexes ensured", zap.String("coll", coll), zap.Strings("indexes", names))
	}
	return nil
}

// FindUser returns the user or models.ErrRecordNotFound.
func (m *MongoStore) FindUser(ctx context.Context, username string) (*models.User, error) {
	var doc userDoc
	err := m.db.Collection(usersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	u := doc.toModel()
	return &u, nil
}

// FindUsers returns the existing users among usernames.
func (m *MongoStore) FindUsers(ctx context.Context, usernames []string) ([]models.User, error) {
	cur, err := m.db.Collection(usersCollection).Find(ctx, bson.M{"username": bson.M{"$in": usernames}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return decodeUsers(ctx, cur)
}

// ListUsers returns every user ordered by username. Credentials are not
// loaded.
func (m *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	cur, err := m.db.Collection(usersCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return decodeUsers(ctx, cur)
}

// SetPassword replaces the stored credential.
func (m *MongoStore) SetPassword(ctx context.Context, username, digest string, at time.Time) error {
	res, err := m.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"password": digest, "updatedAt": at}})
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

// CountUsers returns the number of users.
func (m *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := m.db.Collection(usersCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpsertUsers inserts or replaces users by username.
func (m *MongoStore) UpsertUsers(ctx context.Context, users []models.User) error {
	coll := m.db.Collection(usersCollection)
	for _, u := range users {
		set := bson.M{"username": u.Username, "password": u.Password, "role": string(u.Role), "companyId": u.CompanyID}
		_, err := coll.UpdateOne(ctx, bson.M{"username": u.Username}, bson.M{"$set": set}, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Username, err)
		}
	}
	return nil
}

// ListCertificates returns every certificate ordered by numCert.
func (m *MongoStore) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "numCert", Value: 1}})
	cur, err := m.db.Collection(certificatesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	var docs []certificateDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode certificates: %w", err)
	}
	out := make([]models.Certificate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// GetCertificate returns the certificate with the given id.
func (m *MongoStore) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	var doc certificateDoc
	err = m.db.Collection(certificatesCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get certificate %s: %w", id, err)
	}
	c := doc.toModel()
	return &c, nil
}

// InsertCertificate stores cert and returns its new id.
func (m *MongoStore) InsertCertificate(ctx context.Context, cert models.Certificate) (string, error) {
	res, err := m.db.Collection(certificatesCollection).InsertOne(ctx, certificateToDoc(cert))
	if err != nil {
		return "", fmt.Errorf("insert certificate: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert certificate: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// UpsertCertificate inserts cert or replaces the one with the same
// (companyId, numCert).
func (m *MongoStore) UpsertCertificate(ctx context.Context, cert models.Certificate) error {
	doc := certificateToDoc(cert)
	_, err := m.db.Collection(certificatesCollection).UpdateOne(ctx,
		bson.M{"companyId": doc.CompanyID, "numCert": doc.NumCert},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert certificate %d: %w", cert.NumCert, err)
	}
	return nil
}

// UpdateCertificate applies patch to the certificate with the given id.
func (m *MongoStore) UpdateCertificate(ctx context.Context, id string, patch models.CertificatePatch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrInvalidID
	}
	set := patchSet(patch)
	if len(set) == 0 {
		return nil
	}
	res, err := m.db.Collection(certificatesCollection).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update certificate %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

// DeleteCertificates removes every certificate matching one of keys.
func (m *MongoStore) DeleteCertificates(ctx context.Context, keys []models.CertificateKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := m.db.Collection(certificatesCollection).DeleteMany(ctx, deleteFilter(keys))
	if err != nil {
		return 0, fmt.Errorf("delete certificates: %w", err)
	}
	return res.DeletedCount, nil
}

// GetFolderRouting returns the stored routing.
func (m *MongoStore) GetFolderRouting(ctx context.Context) (*models.StoredFolderRouting, error) {
	var doc configDoc
	err := m.db.Collection(configCollection).FindOne(ctx, bson.M{"key": folderRoutingKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder routing: %w", err)
	}
	return &models.StoredFolderRouting{
		Value: models.FolderRouting{
			Report:      doc.Value.Report,
			Format:      doc.Value.Format,
			Certificate: doc.Value.Certificate,
		},
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// SaveFolderRouting upserts the routing singleton.
func (m *MongoStore) SaveFolderRouting(ctx context.Context, routing models.FolderRouting, at time.Time) error {
	doc := configDoc{
		Key:       folderRoutingKey,
		Value:     routingDoc{Report: routing.Report, Format: routing.Format, Certificate: routing.Certificate},
		UpdatedAt: at,
	}
	_, err := m.db.Collection(configCollection).UpdateOne(ctx,
		bson.M{"key": folderRoutingKey},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save folder routing: %w", err)
	}
	return nil
}

func decodeUsers(ctx context.Context, cur *mongo.Cursor) ([]models.User, error) {
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (d userDoc) toModel() models.User {
	return models.User{
		Username:  d.Username,
		Password:  d.Password,
		Role:      models.Role(d.Role),
		CompanyID: d.CompanyID,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d certificateDoc) toModel() models.Certificate {
	return models.Certificate{
		ID:                d.ID.Hex(),
		NumCert:           d.NumCert,
		Serial:            d.Serial,
		UploadDate:        d.UploadDate.UTC(),
		Result:            d.Result,
		CompanyID:         d.CompanyID,
		AssignedUsernames: d.AssignedUsernames,
		Links: models.Links{
			ReportURL:      d.Links.ReportURL,
			FormatURL:      d.Links.FormatURL,
			CertificateURL: d.Links.CertificateURL,
		},
	}
}

func certificateToDoc(c models.Certificate) certificateDoc {
	usernames := c.AssignedUsernames
	if usernames == nil {
		usernames = []string{}
	}
	return certificateDoc{
		NumCert:           c.NumCert,
		Serial:            c.Serial,
		UploadDate:        c.UploadDate,
		Result:            c.Result,
		CompanyID:         c.CompanyID,
		AssignedUsernames: usernames,
		Links:             linksToDoc(c.Links),
	}
}

func linksToDoc(l models.Links) linksDoc {
	return linksDoc{ReportURL: l.ReportURL, FormatURL: l.FormatURL, CertificateURL: l.CertificateURL}
}

// patchSet builds the $set document for a partial update.
func patchSet(p models.CertificatePatch) bson.M {
	set := bson.M{}
	if p.NumCert != nil {
		set["numCert"] = *p.NumCert
	}
	if p.Serial != nil {
		set["serial"] = *p.Serial
	}
	if p.UploadDate != nil {
		set["uploadDate"] = *p.UploadDate
	}
	if p.Result != nil {
		set["result"] = *p.Result
	}
	if p.CompanyID != nil {
		set["companyId"] = *p.CompanyID
	}
	if p.AssignedUsernames != nil {
		set["assignedUsernames"] = p.AssignedUsernames
	}
	if p.Links != nil {
		set["links"] = linksToDoc(*p.Links)
	}
	return set
}

func deleteFilter(keys []models.CertificateKey) bson.M {
	or := make(bson.A, 0, len(keys))
	for _, k := range keys {
		or = append(or, bson.M{"companyId": k.CompanyID, "numCert": k.NumCert, "serial": k.Serial})
	}
	return bson.M{"$or": or}
}
