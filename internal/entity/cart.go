package entity

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one product in a cart with the price captured when it was added.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	SellerID  int64           `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total is UnitPrice x Quantity.
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the per-session shopping cart. Every line has Quantity >= 1.
// Token changes on each mutation so a checkout can be tied to one cart state.
type Cart struct {
	Token string
	Lines map[int64]CartLine
}

func NewCart() *Cart {
	return &Cart{
		Token: uuid.NewString(),
		Lines: make(map[int64]CartLine),
	}
}

// Add snapshots the product's discounted price and seller. With override the
// quantity replaces the current one, otherwise it is added to it.
func (c *Cart) Add(p *Product, quantity int, override bool) error {
	if p == nil || !p.IsActive {
		return Validationf("product is not available")
	}
	if quantity < 1 {
		return Validationf("quantity must be at least 1")
	}

	line, exists := c.Lines[p.ID]
	if !exists || override {
		line.Quantity = 0
	}
	line.ProductID = p.ID
	line.SellerID = p.SellerID
	line.UnitPrice = p.DiscountedPrice()
	line.Quantity += quantity

	c.ensure()
	c.Lines[p.ID] = line
	c.touch()
	return nil
}

// Remove deletes the product line; it is a no-op when absent.
func (c *Cart) Remove(productID int64) {
	if _, ok := c.Lines[productID]; !ok {
		return
	}
	delete(c.Lines, productID)
	c.touch()
}

func (c *Cart) Clear() {
	c.Lines = make(map[int64]CartLine)
	c.touch()
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// SortedLines returns lines ordered by product id.
func (c *Cart) SortedLines() []CartLine {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// GroupBySeller maps seller id to that seller's lines.
func (c *Cart) GroupBySeller() map[int64][]CartLine {
	groups := make(map[int64][]CartLine)
	for _, l := range c.SortedLines() {
		groups[l.SellerID] = append(groups[l.SellerID], l)
	}
	return groups
}

// SellerIDs returns the distinct sellers in ascending order.
func (c *Cart) SellerIDs() []int64 {
	groups := c.GroupBySeller()
	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SingleSeller returns the only seller of the cart, for flows that cannot
// split an order.
func (c *Cart) SingleSeller() (int64, error) {
	ids := c.SellerIDs()
	switch len(ids) {
	case 0:
		return 0, Validationf("cart is empty")
	case 1:
		return ids[0], nil
	default:
		return 0, Validationf("cart contains products from %d sellers", len(ids))
	}
}

func (c *Cart) ensure() {
	if c.Lines == nil {
		c.Lines = make(map[int64]CartLine)
	}
}

func (c *Cart) touch() {
	c.Token = uuid.NewString()
}
