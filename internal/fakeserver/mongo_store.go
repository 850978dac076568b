package fakeserver

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore is the longer-lived alternative to memoryStore: every entity
// this package defines as a Go struct maps onto its own collection, with
// the natural (clientId) / (recordId) / (writer,user,reader,type) key as
// the document's _id so writes are idempotent upserts.
type mongoStore struct {
	client     *mongo.Client
	clients    *mongo.Collection
	records    *mongo.Collection
	eaks       *mongo.Collection
	policies   *mongo.Collection
	regTokens  *mongo.Collection
	searchSeq  *mongo.Collection
}

// NewMongoStore connects to uri and returns a Store backed by dbName,
// for test fixtures that need to outlive a single process. Ping fails
// fast rather than leaving a half-connected client behind.
func NewMongoStore(ctx context.Context, uri, dbName string) (Store, error) {
	if uri == "" {
		return nil, errors.New("fakeserver: mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	db := cli.Database(dbName)
	s := &mongoStore{
		client:    cli,
		clients:   db.Collection("clients"),
		records:   db.Collection("records"),
		eaks:      db.Collection("access_keys"),
		policies:  db.Collection("policies"),
		regTokens: db.Collection("registration_tokens"),
		searchSeq: db.Collection("search_sequence"),
	}

	_, _ = s.clients.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "api_key_id", Value: 1}}, Options: options.Index().SetUnique(true)})
	return s, nil
}

// Close disconnects the underlying Mongo client.
func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) PutClient(c StoredClient) error {
	ctx := context.Background()
	set := bson.M{
		"name": c.Name, "api_key_id": c.APIKeyID, "api_secret_hash": c.APISecretHash,
		"public_key": c.PublicKey, "signing_key": c.SigningKey,
	}
	_, err := s.clients.UpdateByID(ctx, c.ClientID, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *mongoStore) GetClient(clientID string) (StoredClient, error) {
	var c StoredClient
	err := s.clients.FindOne(context.Background(), bson.M{"_id": clientID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return StoredClient{}, ErrNotFound
	}
	return c, err
}

func (s *mongoStore) GetClientByAPIKey(apiKeyID string) (StoredClient, error) {
	var c StoredClient
	err := s.clients.FindOne(context.Background(), bson.M{"api_key_id": apiKeyID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return StoredClient{}, ErrNotFound
	}
	return c, err
}

func (s *mongoStore) PutRecord(r StoredRecord) error {
	ctx := context.Background()
	if r.RecordID == "" {
		r.RecordID = newVersion()
	}
	idx, err := s.nextSearchIndex(ctx)
	if err != nil {
		return err
	}
	r.SearchIndex = idx
	set := bson.M{
		"writer_id": r.WriterID, "user_id": r.UserID, "type": r.Type, "plain": r.Plain,
		"data": r.Data, "signature": r.Signature, "version": r.Version,
		"created": r.Created, "last_modified": r.LastModified, "search_index": r.SearchIndex,
	}
	_, err = s.records.UpdateByID(ctx, r.RecordID, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *mongoStore) nextSearchIndex(ctx context.Context) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.searchSeq.FindOneAndUpdate(
		ctx,
		bson.M{"_id": "seq"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Seq, err
}

func (s *mongoStore) GetRecord(recordID string) (StoredRecord, error) {
	var r StoredRecord
	err := s.records.FindOne(context.Background(), bson.M{"_id": recordID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return StoredRecord{}, ErrNotFound
	}
	return r, err
}

func (s *mongoStore) DeleteRecord(recordID string) error {
	_, err := s.records.DeleteOne(context.Background(), bson.M{"_id": recordID})
	return err
}

func (s *mongoStore) SearchRecords(writerIDs, userIDs, recordIDs, contentTypes []string, includeAllWriters bool, plain map[string]string, afterIndex int64, count int) ([]StoredRecord, int64, error) {
	ctx := context.Background()
	filter := bson.M{"search_index": bson.M{"$gt": afterIndex}}
	if !includeAllWriters && len(writerIDs) > 0 {
		filter["writer_id"] = bson.M{"$in": writerIDs}
	}
	if len(userIDs) > 0 {
		filter["user_id"] = bson.M{"$in": userIDs}
	}
	if len(recordIDs) > 0 {
		filter["_id"] = bson.M{"$in": recordIDs}
	}
	if len(contentTypes) > 0 {
		filter["type"] = bson.M{"$in": contentTypes}
	}
	for k, v := range plain {
		filter["plain."+k] = v
	}

	opts := options.Find().SetSort(bson.D{{Key: "search_index", Value: 1}})
	if count > 0 {
		opts.SetLimit(int64(count))
	}

	cur, err := s.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, afterIndex, err
	}
	defer cur.Close(ctx)

	var results []StoredRecord
	for cur.Next(ctx) {
		var r StoredRecord
		if err := cur.Decode(&r); err == nil {
			results = append(results, r)
		}
	}

	lastIndex := afterIndex
	if len(results) > 0 {
		lastIndex = results[len(results)-1].SearchIndex
	}
	return results, lastIndex, cur.Err()
}

func (s *mongoStore) PutEAK(key PolicyKey, eak StoredEAK) error {
	set := bson.M{"eak": eak.EAK, "authorizer_public_key": eak.AuthorizerPublicKey, "authorizer_id": eak.AuthorizerID}
	_, err := s.eaks.UpdateByID(context.Background(), key, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *mongoStore) GetEAK(key PolicyKey) (StoredEAK, error) {
	var e StoredEAK
	err := s.eaks.FindOne(context.Background(), bson.M{"_id": key}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return StoredEAK{}, ErrNotFound
	}
	return e, err
}

func (s *mongoStore) DeleteEAK(key PolicyKey) error {
	_, err := s.eaks.DeleteOne(context.Background(), bson.M{"_id": key})
	return err
}

func (s *mongoStore) PutPolicy(key PolicyKey, allow bool) error {
	ctx := context.Background()
	if !allow {
		_, err := s.policies.DeleteOne(ctx, bson.M{"_id": key})
		return err
	}
	_, err := s.policies.UpdateByID(ctx, key, bson.M{"$set": bson.M{"allow": true}}, options.Update().SetUpsert(true))
	return err
}

func (s *mongoStore) OutgoingPolicies(writerID string) ([]PolicyKey, error) {
	return s.findPolicies(bson.M{"_id.writer_id": writerID})
}

func (s *mongoStore) IncomingPolicies(readerID string) ([]PolicyKey, error) {
	return s.findPolicies(bson.M{"_id.reader_id": readerID})
}

func (s *mongoStore) findPolicies(filter bson.M) ([]PolicyKey, error) {
	ctx := context.Background()
	cur, err := s.policies.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []PolicyKey
	for cur.Next(ctx) {
		var doc struct {
			ID PolicyKey `bson:"_id"`
		}
		if err := cur.Decode(&doc); err == nil {
			out = append(out, doc.ID)
		}
	}
	return out, cur.Err()
}

func (s *mongoStore) PutRegistrationToken(token string) error {
	_, err := s.regTokens.UpdateByID(context.Background(), token, bson.M{"$set": bson.M{"valid": true}}, options.Update().SetUpsert(true))
	return err
}

func (s *mongoStore) ConsumeRegistrationToken(token string) (bool, error) {
	ctx := context.Background()
	res, err := s.regTokens.DeleteOne(ctx, bson.M{"_id": token, "valid": true})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}
