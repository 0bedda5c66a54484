package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopstream/storefront-platform/internal/model"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Document shapes live here so backend field naming never leaks past the
// data-access boundary; everything returned to callers is a normalized model
// value.
type productDoc struct {
	ID              int64     `bson:"_id"`
	Title           string    `bson:"title"`
	Description     string    `bson:"description,omitempty"`
	Price           float64   `bson:"price"`
	DiscountPercent int       `bson:"discount_percent,omitempty"`
	ImageURL        string    `bson:"image_url,omitempty"`
	Rating          float64   `bson:"rating"`
	ReviewCount     int       `bson:"review_count"`
	IsPrime         bool      `bson:"is_prime"`
	SellerID        string    `bson:"seller_id,omitempty"`
	Category        string    `bson:"category,omitempty"`
	Stock           int       `bson:"stock"`
	Sold            int       `bson:"sold"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

type profileDoc struct {
	ID          string    `bson:"_id"`
	FullName    string    `bson:"full_name"`
	AvatarURL   string    `bson:"avatar_url,omitempty"`
	Bio         string    `bson:"bio,omitempty"`
	CompanyName string    `bson:"company_name,omitempty"`
	Role        string    `bson:"role"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type conversationDoc struct {
	ID         string    `bson:"_id"`
	CustomerID string    `bson:"customer_id"`
	SellerID   string    `bson:"seller_id"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type messageDoc struct {
	ID             string     `bson:"_id"`
	ConversationID string     `bson:"conversation_id"`
	SenderID       string     `bson:"sender_id"`
	Content        string     `bson:"content"`
	CreatedAt      time.Time  `bson:"created_at"`
	ReadAt         *time.Time `bson:"read_at,omitempty"`
}

type orderDoc struct {
	ID              string         `bson:"_id"`
	UserID          string         `bson:"user_id"`
	Status          string         `bson:"status"`
	Total           float64        `bson:"total"`
	ShippingAddress string         `bson:"shipping_address"`
	TrackingNumber  string         `bson:"tracking_number,omitempty"`
	Items           []orderItemDoc `bson:"items"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

type orderItemDoc struct {
	ProductID       int64   `bson:"product_id"`
	Title           string  `bson:"title"`
	Quantity        int     `bson:"quantity"`
	PriceAtPurchase float64 `bson:"price_at_purchase"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) products() *mongo.Collection      { return s.db.Collection("products") }
func (s *MongoStore) profiles() *mongo.Collection      { return s.db.Collection("profiles") }
func (s *MongoStore) conversations() *mongo.Collection { return s.db.Collection("conversations") }
func (s *MongoStore) messages() *mongo.Collection      { return s.db.Collection("messages") }
func (s *MongoStore) orders() *mongo.Collection        { return s.db.Collection("orders") }
func (s *MongoStore) counters() *mongo.Collection      { return s.db.Collection("counters") }

// nextSequence allocates a monotonically increasing id for a named counter.
func (s *MongoStore) nextSequence(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters().FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// ListProducts returns catalog entries matching the filter.
func (s *MongoStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.SellerID != "" {
		query["seller_id"] = filter.SellerID
	}
	if filter.Search != "" {
		query["title"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}

	total, err := s.products().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, NewBackendError("product_count_failed", "failed to count products", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.products().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, NewBackendError("product_query_failed", "failed to query products", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, NewBackendError("product_decode_failed", "failed to decode products", err)
	}

	products := make([]model.Product, len(docs))
	for i, d := range docs {
		products[i] = d.toModel()
	}
	return products, int(total), nil
}

// GetProduct retrieves a product by id.
func (s *MongoStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var doc productDoc
	err := s.products().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewBackendError("product_get_failed", "failed to get product", err)
	}
	p := doc.toModel()
	return &p, nil
}

// InsertProduct stores a new product, assigning its id when unset.
func (s *MongoStore) InsertProduct(ctx context.Context, p *model.Product) error {
	if p.ID == 0 {
		id, err := s.nextSequence(ctx, "products")
		if err != nil {
			return NewBackendError("product_id_failed", "failed to allocate product id", err)
		}
		p.ID = id
	}
	if _, err := s.products().InsertOne(ctx, productDocFrom(p)); err != nil {
		return NewBackendError("product_insert_failed", "failed to insert product", err)
	}
	return nil
}

// GetProfile retrieves a profile by user id.
func (s *MongoStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var doc profileDoc
	err := s.profiles().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewBackendError("profile_get_failed", "failed to get profile", err)
	}
	p := doc.toModel()
	return &p, nil
}

// UpsertProfile stores a profile.
func (s *MongoStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.profiles().ReplaceOne(ctx,
		bson.M{"_id": p.ID},
		profileDocFrom(p),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return NewBackendError("profile_upsert_failed", "failed to upsert profile", err)
	}
	return nil
}

// ListConversationsForUser returns conversations involving the user, most
// recently updated first.
func (s *MongoStore) ListConversationsForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"customer_id": userID},
		bson.M{"seller_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.conversations().Find(ctx, query, opts)
	if err != nil {
		return nil, NewBackendError("conversation_query_failed", "failed to query conversations", err)
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewBackendError("conversation_decode_failed", "failed to decode conversations", err)
	}

	convs := make([]model.Conversation, len(docs))
	for i, d := range docs {
		convs[i] = d.toModel()
	}
	return convs, nil
}

// GetConversation retrieves a conversation by id.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var doc conversationDoc
	err := s.conversations().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewBackendError("conversation_get_failed", "failed to get conversation", err)
	}
	c := doc.toModel()
	return &c, nil
}

// FindConversationByPair looks up the conversation between two users in either
// role ordering.
func (s *MongoStore) FindConversationByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"customer_id": userA, "seller_id": userB},
		bson.M{"customer_id": userB, "seller_id": userA},
	}}

	var doc conversationDoc
	err := s.conversations().FindOne(ctx, query).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewBackendError("conversation_pair_failed", "failed to find conversation", err)
	}
	c := doc.toModel()
	return &c, nil
}

// InsertConversation stores a new conversation.
func (s *MongoStore) InsertConversation(ctx context.Context, c *model.Conversation) error {
	if _, err := s.conversations().InsertOne(ctx, conversationDocFrom(c)); err != nil {
		return NewBackendError("conversation_insert_failed", "failed to insert conversation", err)
	}
	return nil
}

// TouchConversation bumps a conversation's updated-at timestamp.
func (s *MongoStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := s.conversations().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return NewBackendError("conversation_touch_failed", "failed to update conversation", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns a conversation's history ascending by creation time.
func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, NewBackendError("message_query_failed", "failed to query messages", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewBackendError("message_decode_failed", "failed to decode messages", err)
	}

	msgs := make([]model.Message, len(docs))
	for i, d := range docs {
		msgs[i] = d.toModel()
	}
	return msgs, nil
}

// LastMessage returns the most recent message of a conversation.
func (s *MongoStore) LastMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc messageDoc
	err := s.messages().FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewBackendError("message_last_failed", "failed to get last message", err)
	}
	m := doc.toModel()
	return &m, nil
}

// CountUnread counts unread messages from senderID in a conversation.
func (s *MongoStore) CountUnread(ctx context.Context, conversationID, senderID string) (int, error) {
	count, err := s.messages().CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"read_at":         nil,
	})
	if err != nil {
		return 0, NewBackendError("message_count_failed", "failed to count unread messages", err)
	}
	return int(count), nil
}

// InsertMessage stores a new message.
func (s *MongoStore) InsertMessage(ctx context.Context, m *model.Message) error {
	if _, err := s.messages().InsertOne(ctx, messageDocFrom(m)); err != nil {
		return NewBackendError("message_insert_failed", "failed to insert message", err)
	}
	return nil
}

// MarkRead stamps every unread message from senderID and returns the updated
// records.
func (s *MongoStore) MarkRead(ctx context.Context, conversationID, senderID string, at time.Time) ([]model.Message, error) {
	query := bson.M{
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"read_at":         nil,
	}

	cursor, err := s.messages().Find(ctx, query)
	if err != nil {
		return nil, NewBackendError("message_mark_read_failed", "failed to query unread messages", err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewBackendError("message_mark_read_failed", "failed to decode unread messages", err)
	}

	if len(docs) == 0 {
		return nil, nil
	}

	if _, err := s.messages().UpdateMany(ctx, query, bson.M{"$set": bson.M{"read_at": at}}); err != nil {
		return nil, NewBackendError("message_mark_read_failed", "failed to mark messages read", err)
	}

	updated := make([]model.Message, len(docs))
	for i, d := range docs {
		ts := at
		d.ReadAt = &ts
		updated[i] = d.toModel()
	}
	return updated, nil
}

// InsertOrder stores a completed checkout.
func (s *MongoStore) InsertOrder(ctx context.Context, o *model.Order) error {
	if _, err := s.orders().InsertOne(ctx, orderDocFrom(o)); err != nil {
		return NewBackendError("order_insert_failed", "failed to insert order", err)
	}
	return nil
}

// ListOrdersForUser returns a user's orders, newest first.
func (s *MongoStore) ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.orders().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, NewBackendError("order_query_failed", "failed to query orders", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewBackendError("order_decode_failed", "failed to decode orders", err)
	}

	orders := make([]model.Order, len(docs))
	for i, d := range docs {
		orders[i] = d.toModel()
	}
	return orders, nil
}

func (d productDoc) toModel() model.Product {
	return model.Product{
		ID:              d.ID,
		Title:           d.Title,
		Description:     d.Description,
		Price:           d.Price,
		DiscountPercent: d.DiscountPercent,
		ImageURL:        d.ImageURL,
		Rating:          d.Rating,
		ReviewCount:     d.ReviewCount,
		IsPrime:         d.IsPrime,
		SellerID:        d.SellerID,
		Category:        d.Category,
		Stock:           d.Stock,
		Sold:            d.Sold,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func productDocFrom(p *model.Product) productDoc {
	return productDoc{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Price:           p.Price,
		DiscountPercent: p.DiscountPercent,
		ImageURL:        p.ImageURL,
		Rating:          p.Rating,
		ReviewCount:     p.ReviewCount,
		IsPrime:         p.IsPrime,
		SellerID:        p.SellerID,
		Category:        p.Category,
		Stock:           p.Stock,
		Sold:            p.Sold,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (d profileDoc) toModel() model.Profile {
	return model.Profile{
		ID:          d.ID,
		FullName:    d.FullName,
		AvatarURL:   d.AvatarURL,
		Bio:         d.Bio,
		CompanyName: d.CompanyName,
		Role:        model.Role(d.Role),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func profileDocFrom(p *model.Profile) profileDoc {
	return profileDoc{
		ID:          p.ID,
		FullName:    p.FullName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		CompanyName: p.CompanyName,
		Role:        string(p.Role),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d conversationDoc) toModel() model.Conversation {
	return model.Conversation{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		SellerID:   d.SellerID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func conversationDocFrom(c *model.Conversation) conversationDoc {
	return conversationDoc{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		SellerID:   c.SellerID,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (d messageDoc) toModel() model.Message {
	return model.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
		ReadAt:         d.ReadAt,
	}
}

func messageDocFrom(m *model.Message) messageDoc {
	return messageDoc{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

func (d orderDoc) toModel() model.Order {
	items := make([]model.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = model.OrderItem{
			ProductID:       it.ProductID,
			Title:           it.Title,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		}
	}
	return model.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Status:          model.OrderStatus(d.Status),
		Total:           d.Total,
		ShippingAddress: d.ShippingAddress,
		TrackingNumber:  d.TrackingNumber,
		Items:           items,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func orderDocFrom(o *model.Order) orderDoc {
	items := make([]orderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDoc{
			ProductID:       it.ProductID,
			Title:           it.Title,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		}
	}
	return orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.TrackingNumber,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
