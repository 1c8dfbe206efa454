package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/backend-bloom/internal/common"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/money"
	"github.com/noah-isme/backend-bloom/internal/obs"
	"github.com/noah-isme/backend-bloom/internal/payment"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

// CartRequest is the cart a discount is checked against.
type CartRequest struct {
	Code       string              `json:"code,omitempty" validate:"max=64"`
	Items      []discount.CartItem `json:"items" validate:"dive"`
	CustomerID string              `json:"customerId,omitempty"`
	Channel    discount.Channel    `json:"channel,omitempty" validate:"omitempty,oneof=POS WEBSITE"`
}

func (s *Service) cart(ctx context.Context, tenantID string, req CartRequest) discount.Cart {
	c := discount.Cart{Items: req.Items, Channel: req.Channel}
	if c.Channel == "" {
		c.Channel = discount.ChannelPOS
	}
	c.CustomerID = s.customerFor(ctx, tenantID, req.CustomerID)
	return c
}

// Validation is the outcome of checking a coupon code.
type Validation struct {
	Valid          bool              `json:"valid"`
	Code           string            `json:"code"`
	Name           string            `json:"name,omitempty"`
	Kind           discount.RuleKind `json:"discountType,omitempty"`
	DiscountAmount money.Cents       `json:"discountAmount"`
	FreeShipping   bool              `json:"freeShipping,omitempty"`
	Error          string            `json:"error,omitempty"`
	ErrorCode      string            `json:"errorCode,omitempty"`
}

// ValidateCoupon checks req.Code against the cart. Rule failures are reported
// in the Validation; only infrastructure failures return an error.
func (s *Service) ValidateCoupon(ctx context.Context, req CartRequest) (Validation, error) {
	if s.Discounts == nil {
		return Validation{}, ErrDiscountsUnavailable
	}
	tenantID, _ := tenant.FromContext(ctx)
	code := discount.NormalizeCode(req.Code)
	cart := s.cart(ctx, tenantID, req)
	rule, err := discount.Lookup(ctx, s.Discounts, tenantID, code, cart, s.clock())
	if err != nil {
		if !isRuleError(err) {
			return Validation{}, fmt.Errorf("validate coupon %s: %w", code, err)
		}
		obs.IncCounter(obs.DiscountRejectedTotal, string(discount.KindCoupon), discount.Code(err))
		return Validation{Code: code, Error: err.Error(), ErrorCode: discount.Code(err)}, nil
	}
	return Validation{
		Valid:          true,
		Code:           code,
		Name:           rule.Name,
		Kind:           rule.Kind,
		DiscountAmount: rule.Amount(cart.Total()),
		FreeShipping:   rule.FreeShipping(),
	}, nil
}

// AutoApply lists the automatic discounts that apply to the cart.
func (s *Service) AutoApply(ctx context.Context, req CartRequest) ([]discount.Applied, error) {
	if s.Discounts == nil {
		return nil, ErrDiscountsUnavailable
	}
	tenantID, _ := tenant.FromContext(ctx)
	rules, err := s.Discounts.ListAutomatic(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list automatic discounts: %w", err)
	}
	applied := discount.AutoApply(rules, s.cart(ctx, tenantID, req), s.clock())
	if applied == nil {
		applied = []discount.Applied{}
	}
	return applied, nil
}

// CouponQR renders code as a PNG QR image. When a rule store is configured the
// code must exist for the tenant.
func (s *Service) CouponQR(ctx context.Context, gen discount.QRGenerator, code string) ([]byte, error) {
	code = discount.NormalizeCode(code)
	if code == "" {
		return nil, discount.ErrNotFound
	}
	if s.Discounts != nil {
		tenantID, _ := tenant.FromContext(ctx)
		if _, err := s.Discounts.FindByCode(ctx, tenantID, code); err != nil {
			return nil, err
		}
	}
	return gen.Generate(code)
}

// PlanRow is a tender requested for a split payment.
type PlanRow struct {
	Tender string      `json:"tender" validate:"required"`
	Amount money.Cents `json:"amount" validate:"gte=0"`
}

// PlanRequest asks for a split of Total across tenders. Without rows the
// total is split in half between card and cash.
type PlanRequest struct {
	Total      money.Cents  `json:"total" validate:"gt=0"`
	MinBalance *money.Cents `json:"minBalance,omitempty" validate:"omitempty,gte=0"`
	Rows       []PlanRow    `json:"rows,omitempty" validate:"dive"`
}

// Plan is a split payment plan.
type Plan struct {
	Total     money.Cents   `json:"total"`
	Rows      []payment.Row `json:"rows"`
	Remaining money.Cents   `json:"remaining"`
}

// ErrInvalidPlan is returned for plans that cannot be built.
var ErrInvalidPlan = errors.New("quote: invalid split plan")

// PlanSplit builds a split payment plan. Requested rows are laid out in order
// and any shortfall is covered by a trailing cash row.
func (s *Service) PlanSplit(req PlanRequest) (Plan, error) {
	if req.Total <= 0 {
		return Plan{}, common.Unprocessable("INVALID_PLAN", "total must be positive", ErrInvalidPlan)
	}
	plan := payment.NewSplitPlan(req.Total)
	if req.MinBalance != nil {
		plan.MinBalance = *req.MinBalance
	}
	if len(req.Rows) == 0 {
		plan.Init()
	} else {
		plan.Reset()
		for i, r := range req.Rows {
			rows := plan.Rows()
			if i >= len(rows) {
				plan.AddRow()
				rows = plan.Rows()
			}
			id := rows[i].ID
			plan.SetAmount(id, r.Amount)
			plan.SetTender(id, r.Tender)
		}
	}
	return Plan{Total: req.Total, Rows: plan.Rows(), Remaining: plan.Remaining()}, nil
}
