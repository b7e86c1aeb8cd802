package config

import (
	"fmt"
	"strings"
)

// Validate enforces the constraints the original bot's validate_config()
// applied (original_source/config.py), adapted to the Go field names: a
// bot token shaped like a Telegram token, positive monetary thresholds, a
// sane dynamic-threshold band, a positive aggregation window and
// positive sweep-order settings.
func Validate(c Config) error {
	if c.BotToken != "" && !strings.Contains(c.BotToken, ":") {
		return fmt.Errorf("bot_token: malformed, expected \"<id>:<secret>\" shape")
	}

	if c.ValueRequire <= 0 {
		return fmt.Errorf("value_require: must be positive, got %v", c.ValueRequire)
	}

	if c.BotOwner <= 0 {
		return fmt.Errorf("bot_owner: owner_identity must be a positive integer, got %d", c.BotOwner)
	}

	for _, id := range c.ActiveChatIDs {
		if id == 0 {
			return fmt.Errorf("active_chat_ids: entries must be non-zero")
		}
	}

	if c.ImagePath == "" {
		return fmt.Errorf("image_path: must not be empty")
	}

	if err := validateDynamicThreshold(c.DynamicThreshold); err != nil {
		return fmt.Errorf("dynamic_threshold: %w", err)
	}

	if err := validateTradeAggregation(c.TradeAggregation); err != nil {
		return fmt.Errorf("trade_aggregation: %w", err)
	}

	if err := validateSweepOrders(c.SweepOrders); err != nil {
		return fmt.Errorf("sweep_orders: %w", err)
	}

	return nil
}

func validateDynamicThreshold(d DynamicThreshold) error {
	if !d.Enabled {
		return nil
	}
	if d.Base <= 0 {
		return fmt.Errorf("base_value must be positive, got %v", d.Base)
	}
	if d.Multiplier < 0 {
		return fmt.Errorf("volume_multiplier must be non-negative, got %v", d.Multiplier)
	}
	if d.Min <= 0 || d.Max <= 0 {
		return fmt.Errorf("min_threshold and max_threshold must be positive")
	}
	if d.Min > d.Max {
		return fmt.Errorf("min_threshold (%v) exceeds max_threshold (%v)", d.Min, d.Max)
	}
	if d.RefreshIntervalSecs <= 0 {
		return fmt.Errorf("price_check_interval must be positive, got %d", d.RefreshIntervalSecs)
	}
	return nil
}

func validateTradeAggregation(t TradeAggregation) error {
	if !t.Enabled {
		return nil
	}
	if t.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %d", t.WindowSeconds)
	}
	return nil
}

func validateSweepOrders(s SweepOrders) error {
	if !s.Enabled {
		return nil
	}
	if s.MinValue <= 0 {
		return fmt.Errorf("min_value must be positive, got %v", s.MinValue)
	}
	if s.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %d", s.CheckInterval)
	}
	if s.MinOrdersFilled <= 0 {
		return fmt.Errorf("min_orders_filled must be positive, got %d", s.MinOrdersFilled)
	}
	return nil
}
