package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/cache"
	"github.com/coursekit/coursekit/internal/pkg/database"
)

const (
	CacheKeyPurchasesTotal = "statistics:purchases:total"
	CacheKeyPurchasesDaily = "statistics:purchases:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers          = "statistics:users:total"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers for the admin dashboard
type StatisticsData struct {
	TodayPurchases int
	TotalUsers     int
	TotalPurchases int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached numbers are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has passed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		log.Println("Updating statistics cache...")
		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalPurchases int64
	if err := db.Model(&models.Purchase{}).Count(&totalPurchases).Error; err != nil {
		log.Printf("Error counting total purchases: %v", err)
		return err
	}

	var todayPurchases int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Purchase{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayPurchases).Error; err != nil {
		log.Printf("Error counting today's purchases: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPurchasesTotal, strconv.FormatInt(totalPurchases, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total purchases: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayPurchases, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's purchases: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total Purchases: %d, Today's Purchases: %d, Total Users: %d",
		totalPurchases, todayPurchases, totalUsers)

	return nil
}

// GetTotalPurchases returns the total number of purchases from cache or database
func GetTotalPurchases() int {
	val, err := cache.Get(CacheKeyPurchasesTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Purchase{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total purchases: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyPurchasesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total purchases: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayPurchases returns the number of purchases created today from cache or database
func GetTodayPurchases() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Purchase{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's purchases: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's purchases: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayPurchases: GetTodayPurchases(),
		TotalUsers:     GetTotalUsers(),
		TotalPurchases: GetTotalPurchases(),
	}
}
