package sqlitetest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Sale is a buyer, seller and admin around one listing, its order and the
// buyer's payment proof.
type Sale struct {
	Buyer   models.User
	Seller  models.User
	Admin   models.User
	Listing models.Listing
	Order   models.Order
	Proof   models.PaymentProof
}

// SaleOptions tweaks the seeded sale. Zero values pick sensible defaults.
type SaleOptions struct {
	Price              string
	ListingCommission  *decimal.Decimal
	OrderCommission    *decimal.Decimal
	ChargedAmount      *decimal.Decimal
	ProofStatus        enums.PaymentProofStatus
	SkipListing        bool
	SkipBuyer          bool
	ProofUploadedAfter time.Duration
}

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, name string, role enums.UserRole) models.User {
	t.Helper()
	now := time.Now().UTC()
	phone := "+1555" + uuid.NewString()[:7]
	user := models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     uuid.NewString() + "@example.com",
		Phone:     &phone,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedSale inserts a complete sale ready for payment review.
func SeedSale(t testing.TB, conn *gorm.DB, opts SaleOptions) Sale {
	t.Helper()
	if opts.Price == "" {
		opts.Price = "1000"
	}
	if opts.ProofStatus == "" {
		opts.ProofStatus = enums.PaymentProofStatusPendingVerification
	}
	now := time.Now().UTC()

	sale := Sale{
		Buyer:  SeedUser(t, conn, "Buyer", enums.UserRoleUser),
		Seller: SeedUser(t, conn, "Seller", enums.UserRoleUser),
		Admin:  SeedUser(t, conn, "Admin", enums.UserRoleAdmin),
	}

	sale.Listing = models.Listing{
		ID:                uuid.New(),
		SellerID:          sale.Seller.ID,
		Title:             "Road bike",
		Price:             decimal.RequireFromString(opts.Price),
		CommissionPercent: opts.ListingCommission,
		Status:            enums.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !opts.SkipListing {
		require.NoError(t, conn.Create(&sale.Listing).Error)
	}

	sale.Order = models.Order{
		ID:                uuid.New(),
		BuyerID:           sale.Buyer.ID,
		SellerID:          sale.Seller.ID,
		ListingID:         sale.Listing.ID,
		ChargedAmount:     opts.ChargedAmount,
		CommissionPercent: opts.OrderCommission,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, conn.Create(&sale.Order).Error)

	sale.Proof = models.PaymentProof{
		ID:         uuid.New(),
		OrderID:    sale.Order.ID,
		BuyerID:    sale.Buyer.ID,
		SellerID:   sale.Seller.ID,
		ListingID:  sale.Listing.ID,
		Amount:     decimal.RequireFromString(opts.Price),
		ImageURL:   "https://cdn.example.com/proofs/" + uuid.NewString() + ".jpg",
		Status:     opts.ProofStatus,
		UploadedAt: now.Add(opts.ProofUploadedAfter),
		UpdatedAt:  now,
	}
	if opts.ProofStatus == enums.PaymentProofStatusVerified {
		verifier := sale.Admin.ID
		sale.Proof.VerifierID = &verifier
		sale.Proof.VerifiedAt = &now
	}
	require.NoError(t, conn.Create(&sale.Proof).Error)

	if opts.SkipBuyer {
		require.NoError(t, conn.Delete(&models.User{}, "id = ?", sale.Buyer.ID).Error)
	}
	return sale
}
