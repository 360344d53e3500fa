package postgres

import (
	"context"
	"testing"

	leaveDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/leave"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestBalanceRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Leave Balance Repository Suite")
}

var _ = Describe("BalanceRepository", func() {
	var (
		db   *gorm.DB
		repo *BalanceRepository
		ctx  context.Context
	)

	seed := func(userID int64, category string, year int, allocated, consumed int64) {
		Expect(db.Create(&leaveDatamodel.Balance{
			UserID:    userID,
			Category:  category,
			Year:      year,
			Allocated: decimal.NewFromInt(allocated),
			Consumed:  decimal.NewFromInt(consumed),
		}).Error).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&leaveDatamodel.Balance{})).To(Succeed())

		repo = NewBalanceRepository(db)
		ctx = context.Background()

		seed(1, "earned", 2024, 18, 3)
		seed(1, "casual", 2024, 6, 6)
		seed(1, "sick", 2024, 10, 0)
		seed(1, "earned", 2023, 18, 0)
		seed(2, "earned", 2024, 18, 0)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("GetBalances", func() {
		It("should only return the requested categories of the year", func() {
			balances, err := repo.GetBalances(ctx, 1, []string{"earned", "casual"}, 2024)
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(HaveLen(2))

			byCategory := map[string]decimal.Decimal{}
			for _, b := range balances {
				byCategory[b.Category] = b.Available()
			}
			Expect(byCategory["earned"].Equal(decimal.NewFromInt(15))).To(BeTrue())
			Expect(byCategory["casual"].IsZero()).To(BeTrue())
		})

		It("should return nothing without categories", func() {
			balances, err := repo.GetBalances(ctx, 1, nil, 2024)
			Expect(err).NotTo(HaveOccurred())
			Expect(balances).To(BeEmpty())
		})
	})

	Describe("Consume", func() {
		It("should debit the balances in category order", func() {
			err := repo.Consume(ctx, 1, []string{"casual", "earned", "sick"}, 2024, decimal.NewFromInt(17))
			Expect(err).NotTo(HaveOccurred())

			balances, err := repo.GetBalances(ctx, 1, []string{"earned", "casual", "sick"}, 2024)
			Expect(err).NotTo(HaveOccurred())
			consumed := map[string]decimal.Decimal{}
			for _, b := range balances {
				consumed[b.Category] = b.Consumed
			}
			Expect(consumed["casual"].Equal(decimal.NewFromInt(6))).To(BeTrue())
			Expect(consumed["earned"].Equal(decimal.NewFromInt(18))).To(BeTrue())
			Expect(consumed["sick"].Equal(decimal.NewFromInt(2))).To(BeTrue())
		})

		It("should leave other years and users untouched", func() {
			Expect(repo.Consume(ctx, 1, []string{"earned"}, 2024, decimal.NewFromInt(5))).To(Succeed())

			var other []leaveDatamodel.Balance
			Expect(db.Where("consumed > 0 AND category = ?", "earned").Find(&other).Error).To(Succeed())
			Expect(other).To(HaveLen(1))
			Expect(other[0].UserID).To(Equal(int64(1)))
			Expect(other[0].Year).To(Equal(2024))
		})
	})
})
