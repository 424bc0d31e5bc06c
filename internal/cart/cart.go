// Package cart keeps each consumer's shopping cart in Redis.
//
// A cart is two hashes keyed by product ID: one holds quantities and is only
// changed with HINCRBY/HSET so concurrent adds merge instead of overwriting,
// the other holds a display snapshot of the product taken when it was added.
package cart

import (
	"context"       // Context for Redis operations
	"encoding/json" // Snapshot encoding
	"errors"        // redis.Nil comparison
	"fmt"           // Error wrapping
	"sort"          // Stable line order
	"strconv"       // Key and field formatting
	"time"          // Cart lifetime

	"farm_market/internal/domain" // Products and cart errors

	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money arithmetic
)

// Item is the product snapshot stored with a cart line
type Item struct {
	ProductID  uint            `json:"product_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Unit       string          `json:"unit"`
	ImageURL   string          `json:"image_url"`
	FarmerID   uint            `json:"farmer_id"`
	FarmerName string          `json:"farmer_name"`
}

// Line is an item with its quantity
type Line struct {
	Item
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Cart is the full view returned to clients
type Cart struct {
	Items     []Line          `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Store reads and writes carts
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a cart store whose carts expire ttl after their last change
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func qtyKey(userID uint) string {
	return "cart:user:" + strconv.FormatUint(uint64(userID), 10) + ":qty"
}
func itemsKey(userID uint) string {
	return "cart:user:" + strconv.FormatUint(uint64(userID), 10) + ":items"
}

func field(productID uint) string { return strconv.FormatUint(uint64(productID), 10) }

// ItemFromProduct snapshots a product for the cart
func ItemFromProduct(p domain.Product, farmer domain.User) Item {
	return Item{
		ProductID:  p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Unit:       p.Unit,
		ImageURL:   p.ImageURL,
		FarmerID:   p.FarmerID,
		FarmerName: farmer.DisplayName(),
	}
}

// Add puts qty units of item in the cart, merging with an existing line.
// It returns the new quantity of the line.
func (s *Store) Add(ctx context.Context, userID uint, item Item, qty int) (int, error) {
	if qty < 1 {
		return 0, domain.ErrInvalidQuantity
	}
	snapshot, err := json.Marshal(item) // Display snapshot for the items hash
	if err != nil {
		return 0, err
	}
	var incr *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, qtyKey(userID), field(item.ProductID), int64(qty)) // Merge with an existing line
		pipe.HSet(ctx, itemsKey(userID), field(item.ProductID), snapshot)
		pipe.Expire(ctx, qtyKey(userID), s.ttl) // Refresh the cart lifetime
		pipe.Expire(ctx, itemsKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add to cart: %w", err)
	}
	return int(incr.Val()), nil
}

// SetQuantity overwrites the quantity of an existing line
func (s *Store) SetQuantity(ctx context.Context, userID, productID uint, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	exists, err := s.rdb.HExists(ctx, qtyKey(userID), field(productID)).Result()
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, qtyKey(userID), field(productID), qty)
		pipe.Expire(ctx, qtyKey(userID), s.ttl)
		pipe.Expire(ctx, itemsKey(userID), s.ttl)
		return nil
	})
	return err
}

// Remove drops a line; removing a missing line returns ErrNotFound
func (s *Store) Remove(ctx context.Context, userID, productID uint) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.HDel(ctx, qtyKey(userID), field(productID)) // Quantity decides whether the line existed
		pipe.HDel(ctx, itemsKey(userID), field(productID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, qtyKey(userID), itemsKey(userID)).Err()
}

// deductScript takes ARGV pairs of field and quantity off the qty hash and
// drops lines that reach zero from both hashes. Returns the lines left.
var deductScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
	local left = redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
	if left <= 0 then
		redis.call('HDEL', KEYS[1], ARGV[i])
		redis.call('HDEL', KEYS[2], ARGV[i])
	end
end
return redis.call('HLEN', KEYS[1])
`)

// Deduct removes purchased quantities from the cart in one atomic step.
// Lines added or topped up since the quantities were read stay in the cart.
func (s *Store) Deduct(ctx context.Context, userID uint, quantities map[uint]int) (int, error) {
	if len(quantities) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, field(id), quantities[id]) // Field, then quantity bought
	}
	left, err := deductScript.Run(ctx, s.rdb, []string{qtyKey(userID), itemsKey(userID)}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("deduct from cart: %w", err)
	}
	return left, nil
}

// Get returns the cart with lines ordered by product ID
func (s *Store) Get(ctx context.Context, userID uint) (Cart, error) {
	var qtyCmd, itemsCmd *redis.MapStringStringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		qtyCmd = pipe.HGetAll(ctx, qtyKey(userID))
		itemsCmd = pipe.HGetAll(ctx, itemsKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Cart{}, fmt.Errorf("read cart: %w", err)
	}

	c := Cart{Items: []Line{}, Subtotal: decimal.Zero}
	snapshots := itemsCmd.Val()
	for f, q := range qtyCmd.Val() {
		qty, err := strconv.Atoi(q)
		if err != nil || qty < 1 {
			continue // Skip corrupt quantities
		}
		var item Item
		if raw, ok := snapshots[f]; !ok || json.Unmarshal([]byte(raw), &item) != nil {
			continue
		}
		line := Line{Item: item, Quantity: qty, LineTotal: item.Price.Mul(decimal.NewFromInt(int64(qty)))}
		c.Items = append(c.Items, line)
		c.ItemCount += qty
		c.Subtotal = c.Subtotal.Add(line.LineTotal)
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].ProductID < c.Items[j].ProductID }) // Stable order for clients
	return c, nil
}

// Quantities returns product ID to quantity without the snapshots
func (s *Store) Quantities(ctx context.Context, userID uint) (map[uint]int, error) {
	raw, err := s.rdb.HGetAll(ctx, qtyKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	out := make(map[uint]int, len(raw))
	for f, q := range raw {
		id, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(q)
		if err != nil || qty < 1 {
			continue
		}
		out[uint(id)] = qty
	}
	return out, nil
}
