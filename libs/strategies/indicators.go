package strategies

import "simulor/libs/marketdata"

// sma returns the simple moving average of the last n closes in bars, and
// whether enough bars were available.
func sma(bars []marketdata.Bar, n int) (float64, bool) {
	if len(bars) < n {
		return 0, false
	}
	window := bars[len(bars)-n:]
	sum := 0.0
	for _, b := range window {
		c, _ := b.Close.Float64()
		sum += c
	}
	return sum / float64(n), true
}

// ema computes the exponential moving average of closes with the
// conventional 2/(n+1) smoothing factor, seeded by the SMA of the first n
// bars.
func ema(bars []marketdata.Bar, n int) (float64, bool) {
	if len(bars) < n {
		return 0, false
	}
	seed, ok := sma(bars[:n], n)
	if !ok {
		return 0, false
	}
	k := 2.0 / float64(n+1)
	e := seed
	for _, b := range bars[n:] {
		c, _ := b.Close.Float64()
		e = c*k + e*(1-k)
	}
	return e, true
}

// atr computes the Average True Range over n bars using the classic
// Wilder smoothing (simple average of true ranges, not the recursive
// form, which is sufficient for strategy-level position sizing).
func atr(bars []marketdata.Bar, n int) (float64, bool) {
	if len(bars) < n+1 {
		return 0, false
	}
	window := bars[len(bars)-n:]
	sum := 0.0
	for idx, b := range window {
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		prevClose := high
		if idx == 0 {
			pc, _ := bars[len(bars)-n-1].Close.Float64()
			prevClose = pc
		} else {
			pc, _ := window[idx-1].Close.Float64()
			prevClose = pc
		}
		tr := high - low
		if hc := absf(high - prevClose); hc > tr {
			tr = hc
		}
		if lc := absf(low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(n), true
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// rsi computes the Relative Strength Index over n periods from the simple
// averages of gains and losses over the last n close-to-close changes.
func rsi(bars []marketdata.Bar, n int) (float64, bool) {
	if len(bars) < n+1 {
		return 0, false
	}
	window := bars[len(bars)-n-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		prev, _ := window[i-1].Close.Float64()
		cur, _ := window[i].Close.Float64()
		delta := cur - prev
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(n)
	avgLoss := lossSum / float64(n)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// macdLine computes the MACD line (fast EMA - slow EMA) and the signal
// line (EMA of the MACD line over signalN periods), returning both plus
// the histogram.
func macdLine(bars []marketdata.Bar, fastN, slowN, signalN int) (macd, signal, histogram float64, ok bool) {
	if len(bars) < slowN+signalN {
		return 0, 0, 0, false
	}
	var macdSeries []float64
	for end := slowN; end <= len(bars); end++ {
		fast, _ := ema(bars[:end], fastN)
		slow, _ := ema(bars[:end], slowN)
		macdSeries = append(macdSeries, fast-slow)
	}
	if len(macdSeries) < signalN {
		return 0, 0, 0, false
	}
	sig := macdSeries[0]
	k := 2.0 / float64(signalN+1)
	for _, v := range macdSeries[1:] {
		sig = v*k + sig*(1-k)
	}
	last := macdSeries[len(macdSeries)-1]
	return last, sig, last - sig, true
}
