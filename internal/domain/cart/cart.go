package cart

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidOwner    = errors.New("cart: user id or session id is required")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrNotFound        = errors.New("cart: not found")
)

// Owner addresses a cart. A user id always wins over a session id.
type Owner struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func UserOwner(id string) Owner { return Owner{UserID: id} }

func SessionOwner(id string) Owner { return Owner{SessionID: id} }

// Resolve normalises the owner so exactly one identity remains.
func (o Owner) Resolve() (Owner, error) {
	userID := strings.TrimSpace(o.UserID)
	if userID != "" {
		return Owner{UserID: userID}, nil
	}
	sessionID := strings.TrimSpace(o.SessionID)
	if sessionID != "" {
		return Owner{SessionID: sessionID}, nil
	}
	return Owner{}, ErrInvalidOwner
}

// Key is the storage key for the owner's cart.
func (o Owner) Key() (string, error) {
	r, err := o.Resolve()
	if err != nil {
		return "", err
	}
	if r.UserID != "" {
		return "user:" + r.UserID, nil
	}
	return "session:" + r.SessionID, nil
}

func (o Owner) IsUser() bool { return strings.TrimSpace(o.UserID) != "" }

// Line references a product in a cart. UnitPrice is captured when the line is
// first added and never re-priced in storage.
type Line struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"price"`
	AddedAt   time.Time `json:"added_at"`
}

type Cart struct {
	Owner     Owner     `json:"owner"`
	Lines     []Line    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(owner Owner) *Cart {
	return &Cart{Owner: owner, Lines: []Line{}, UpdatedAt: time.Now().UTC()}
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID string) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Add sums quantities for an existing line or appends a new one at unitPrice.
func (c *Cart) Add(productID string, quantity int, unitPrice int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.index(productID); i >= 0 {
		c.Lines[i].Quantity += quantity
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			AddedAt:   time.Now().UTC(),
		})
	}
	c.touch()
	return nil
}

// SetQuantity replaces a line quantity; zero removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity == 0 {
		c.removeAt(i)
	} else {
		c.Lines[i].Quantity = quantity
	}
	c.touch()
	return nil
}

// Remove drops the line for productID and reports whether one existed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	c.touch()
	return true
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Absorb folds other into c: shared products have their quantities summed,
// all other lines are appended unchanged. Stock is not checked here.
func (c *Cart) Absorb(other *Cart) {
	if other == nil {
		return
	}
	for _, l := range other.Lines {
		if i := c.index(l.ProductID); i >= 0 {
			c.Lines[i].Quantity += l.Quantity
			continue
		}
		c.Lines = append(c.Lines, l)
	}
	c.touch()
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line{}, c.Lines...)
	return &clone
}

func (c *Cart) index(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
