package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMomentumRow_MarshalJSON_NaNAsNull(t *testing.T) {
	row := MomentumRow{
		Time:                time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:               10,
		RSI:                 math.NaN(),
		Momentum:            math.NaN(),
		SMA20:               9.5,
		SMA50:               math.NaN(),
		PriceChangePct:      1.5,
		MomentumStrengthPct: math.NaN(),
	}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["rsi"] != nil {
		t.Errorf("Expected rsi null, got %v", decoded["rsi"])
	}
	if decoded["sma_20"] != 9.5 {
		t.Errorf("Expected sma_20 9.5, got %v", decoded["sma_20"])
	}
	if decoded["close"] != 10.0 {
		t.Errorf("Expected close 10, got %v", decoded["close"])
	}
	if strings.Count(string(data), `"rsi"`) != 1 {
		t.Errorf("Expected a single rsi key, got %s", data)
	}
}

func TestEngulfingSummary_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(EngulfingSummary{Ticker: "AAA", LatestSignal: SignalBullish, LatestClose: 12.5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"latest_signal":2`) {
		t.Errorf("Expected numeric signal code, got %s", data)
	}
	if !strings.Contains(string(data), `"latest_signal_name":"Bullish"`) {
		t.Errorf("Expected signal name, got %s", data)
	}
}
