// Seeds the threshold key space with the default bounds and a few
// example entities. Key space: threshold:{entity_id}:{warning|critical|target}
// plus threshold:default:* overrides.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	client := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	fmt.Println("✓ Connected to Redis")

	thresholds := map[string]map[string]float64{
		"default": {"warning": -10, "critical": -5, "target": -18},
		"ship_1":  {"warning": -12, "critical": -6, "target": -20},
		"ship_2":  {"warning": -10, "critical": -5, "target": -18},
	}

	for entity, components := range thresholds {
		for component, value := range components {
			key := fmt.Sprintf("threshold:%s:%s", entity, component)
			if err := client.Set(ctx, key, value, 0).Err(); err != nil {
				log.Fatalf("✗ SET %s failed: %v", key, err)
			}
			fmt.Printf("✓ %s = %.1f\n", key, value)
		}
	}

	fmt.Println("\n✅ Thresholds seeded")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
