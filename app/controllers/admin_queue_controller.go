package controllers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
)

// AdminQueueController handles admin queue-related HTTP requests using repository pattern
type AdminQueueController struct {
	queueRepo repository.QueueRepository
}

// NewAdminQueueController creates a new admin queue controller with repository
func NewAdminQueueController(queueRepo repository.QueueRepository) *AdminQueueController {
	return &AdminQueueController{
		queueRepo: queueRepo,
	}
}

// QueueItem is one cache/queue entry in the monitor listing.
type QueueItem struct {
	Key   string        `json:"key"`
	Value string        `json:"value"`
	Type  string        `json:"type"`
	TTL   time.Duration `json:"ttl"`
	Size  int64         `json:"size"`
}

// HandleAdminQueueStats reports job queue counters and backlog sizes.
func (aqc *AdminQueueController) HandleAdminQueueStats(c *fiber.Ctx) error {
	mgr := jobqueue.GetManager()
	if mgr == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Job queue not running"})
	}

	queue := mgr.GetQueue()
	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load job stats"})
	}
	queued, err := queue.GetQueueSize(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load queue size"})
	}
	processing, err := queue.GetProcessingSize(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load processing size"})
	}

	return c.JSON(fiber.Map{
		"running":    mgr.IsRunning(),
		"stats":      stats,
		"queued":     queued,
		"processing": processing,
	})
}

// HandleAdminQueues lists all cache and queue entries with metadata.
func (aqc *AdminQueueController) HandleAdminQueues(c *fiber.Ctx) error {
	queueItems, err := aqc.getQueueItems()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
	}

	return c.JSON(fiber.Map{"items": queueItems})
}

// HandleAdminQueueDelete deletes a specific cache entry.
func (aqc *AdminQueueController) HandleAdminQueueDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Key is required"})
	}

	result, err := aqc.queueRepo.DeleteKey(key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete key"})
	}

	if result == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Entry not found"})
	}

	return c.JSON(fiber.Map{"status": "deleted", "key": key})
}

// getQueueItems retrieves all items from the cache with their metadata
func (aqc *AdminQueueController) getQueueItems() ([]QueueItem, error) {
	keys, err := aqc.queueRepo.GetAllKeys()
	if err != nil {
		return nil, err
	}

	queueItems := make([]QueueItem, 0, len(keys))

	for _, key := range keys {
		value, err := aqc.queueRepo.GetValue(key)
		if err != nil && err != redis.Nil {
			// Skip this key if there's an error other than key not found
			continue
		}

		ttl, err := aqc.queueRepo.GetTTL(key)
		if err != nil {
			ttl = -1
		}

		// Determine type based on key prefix
		itemType := "unknown"
		displayValue := value

		if strings.HasPrefix(key, jobqueue.JobKeyPrefix) {
			itemType = "job"
			jobID := strings.TrimPrefix(key, jobqueue.JobKeyPrefix)
			displayValue = "Job " + jobID + ": " + aqc.getJobStatusFromValue(value)
		} else if key == jobqueue.JobQueueKey {
			itemType = "job_queue"
			displayValue = listLengthLabel(aqc.queueRepo, key, "queued")
		} else if key == jobqueue.JobProcessingKey {
			itemType = "job_processing"
			displayValue = listLengthLabel(aqc.queueRepo, key, "processing")
		} else if key == jobqueue.JobStatsKey {
			itemType = "job_stats"
			displayValue = "job statistics"
		} else if strings.HasPrefix(key, "statistics:") {
			itemType = "statistics"
		} else if strings.HasPrefix(key, "content:counters:") || strings.HasPrefix(key, "product:counters:") ||
			strings.HasPrefix(key, "seatpool:counters:") || strings.HasPrefix(key, "webhook:counters:") {
			itemType = "counter"
		} else if strings.HasPrefix(key, "session:") {
			itemType = "session"
		}

		queueItems = append(queueItems, QueueItem{
			Key:   key,
			Value: displayValue,
			Type:  itemType,
			TTL:   ttl,
			Size:  int64(len(value)),
		})
	}

	sort.Slice(queueItems, func(i, j int) bool {
		if queueItems[i].Type != queueItems[j].Type {
			return queueItems[i].Type < queueItems[j].Type
		}
		return queueItems[i].Key < queueItems[j].Key
	})

	return queueItems, nil
}

// getJobStatusFromValue extracts job status from JSON job data
func (aqc *AdminQueueController) getJobStatusFromValue(jsonValue string) string {
	for _, status := range []string{"pending", "processing", "completed", "failed", "retrying"} {
		if strings.Contains(jsonValue, `"status":"`+status+`"`) {
			return status
		}
	}
	return "unknown"
}

func listLengthLabel(repo repository.QueueRepository, key, label string) string {
	n, err := repo.GetListLength(key)
	if err != nil {
		return label
	}
	return fmt.Sprintf("%s (%d jobs)", label, n)
}

var adminQueueController *AdminQueueController

// InitializeAdminQueueController initializes the global admin queue controller
func InitializeAdminQueueController() {
	queueRepo := repository.GetGlobalFactory().GetQueueRepository()
	adminQueueController = NewAdminQueueController(queueRepo)
}

// GetAdminQueueController returns the global admin queue controller instance
func GetAdminQueueController() *AdminQueueController {
	if adminQueueController == nil {
		InitializeAdminQueueController()
	}
	return adminQueueController
}
