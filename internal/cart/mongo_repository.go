package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/martxmartindia/checkout/internal/domain"
)

// cartDoc mirrors domain.Cart for storage. Prices travel as strings so the
// decimal values round-trip exactly through BSON.
type cartDoc struct {
	ID        string        `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Items     []cartItemDoc `bson:"items"`
	Coupon    *couponDoc    `bson:"coupon,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type cartItemDoc struct {
	ProductID   int64     `bson:"product_id"`
	DisplayName string    `bson:"display_name"`
	ImageRef    string    `bson:"image_ref,omitempty"`
	Quantity    int       `bson:"quantity"`
	UnitPrice   string    `bson:"unit_price"`
	AddedAt     time.Time `bson:"added_at"`
}

type couponDoc struct {
	Code           string `bson:"code"`
	DiscountType   string `bson:"discount_type"`
	DiscountValue  string `bson:"discount_value"`
	ComputedAmount string `bson:"computed_amount"`
}

func toItemDoc(item domain.CartItem) cartItemDoc {
	return cartItemDoc{
		ProductID:   item.ProductID,
		DisplayName: item.DisplayName,
		ImageRef:    item.ImageRef,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.String(),
		AddedAt:     item.AddedAt,
	}
}

func (d cartDoc) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:    d.UserID,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("bad unit price %q for product %d: %w", it.UnitPrice, it.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   it.ProductID,
			DisplayName: it.DisplayName,
			ImageRef:    it.ImageRef,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			AddedAt:     it.AddedAt,
		})
	}
	if d.Coupon != nil {
		value, err := decimal.NewFromString(d.Coupon.DiscountValue)
		if err != nil {
			return nil, fmt.Errorf("bad coupon value %q: %w", d.Coupon.DiscountValue, err)
		}
		computed, err := decimal.NewFromString(d.Coupon.ComputedAmount)
		if err != nil {
			return nil, fmt.Errorf("bad coupon amount %q: %w", d.Coupon.ComputedAmount, err)
		}
		cart.Coupon = &domain.AppliedCoupon{
			Code:           d.Coupon.Code,
			DiscountType:   domain.DiscountType(d.Coupon.DiscountType),
			DiscountValue:  value,
			ComputedAmount: computed,
		}
	}
	return cart, nil
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now
	doc := toItemDoc(item)

	filter := bson.M{"user_id": userID}

	var existing cartDoc
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			cart := cartDoc{
				UserID:    userID,
				Items:     []cartItemDoc{doc},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err = m.collection.InsertOne(ctx, cart); err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	itemExists := false
	for _, existingItem := range existing.Items {
		if existingItem.ProductID == item.ProductID {
			itemExists = true
			break
		}
	}

	if itemExists {
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity":   doc.Quantity,
				"items.$[elem].unit_price": doc.UnitPrice,
				"items.$[elem].added_at":   now,
				"updated_at":               now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})
		if _, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"items": doc},
			"$set":  bson.M{"updated_at": now},
		}
		if _, err = m.collection.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}

	return nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) SetCoupon(ctx context.Context, userID string, coupon *domain.AppliedCoupon) error {
	doc := &couponDoc{
		Code:           coupon.Code,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue.String(),
		ComputedAmount: coupon.ComputedAmount.String(),
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"coupon":     doc,
			"updated_at": time.Now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set coupon: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) ClearCoupon(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$unset": bson.M{"coupon": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear coupon: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// EnsureIndexes creates the cart collection indexes: a unique user_id index
// and a 90-day TTL on updated_at so abandoned carts age out.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	repo := &mongoRepository{collection: db.Collection("carts")}
	return repo.CreateIndexes(ctx)
}

// ConnectMongoDB opens the cart database connection.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
