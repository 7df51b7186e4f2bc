package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coursekit/coursekit/internal/pkg/cache"
	"github.com/coursekit/coursekit/internal/pkg/database"
)

const (
	contentViewsKey = "content:counters:views"
	productViewsKey = "product:counters:views"
	seatClaimsKey   = "seatpool:counters:claims"
	webhookEventKey = "webhook:counters:events"
)

// AddContentView increments the pending view counter for a content resource in Redis
func AddContentView(contentID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(contentID), 10)
	return cache.GetClient().HIncrBy(ctx, contentViewsKey, field, 1).Err()
}

// AddProductView increments the pending view counter for a product page in Redis
func AddProductView(productID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(productID), 10)
	return cache.GetClient().HIncrBy(ctx, productViewsKey, field, 1).Err()
}

// AddSeatClaim increments the rolling claim counter for a seat pool. The
// hash stays in Redis for the admin queue monitor; it is not flushed to a
// table because coupons.used_count is already the durable count.
func AddSeatClaim(poolID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(poolID), 10)
	return cache.GetClient().HIncrBy(ctx, seatClaimsKey, field, 1).Err()
}

// AddWebhookEvent increments the per-provider inbound webhook counter.
func AddWebhookEvent(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookEventKey, provider, 1).Err()
}

// FlushAll flushes all pending view counters to the database
func FlushAll() error {
	if err := flushHashToTable(contentViewsKey, "content_resources", "view_count"); err != nil {
		return err
	}
	if err := flushHashToTable(productViewsKey, "products", "view_count"); err != nil {
		return err
	}
	return nil
}

// flushHashToTable drains a Redis hash atomically and applies batched increments to the target table.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		// Some Redis libs return redis.Nil; treat as empty
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	// Build batched UPDATE using CASE WHEN id THEN inc
	// Collect ids and increments; also sort ids for stable SQL
	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	sql := builder.String()
	db := database.GetDB()
	if err := db.Exec(sql, args...).Error; err != nil {
		return err
	}
	return nil
}
