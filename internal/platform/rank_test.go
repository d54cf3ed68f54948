package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreCandidate(t *testing.T) {
	t.Run("exact match beats popular near miss", func(t *testing.T) {
		exact := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자", salesPoint: 1000})
		near := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자 초등 독서 워크북", salesPoint: 100000})
		assert.Greater(t, exact, near)
	})

	t.Run("penalty keywords subtract", func(t *testing.T) {
		clean := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자"})
		penalized := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자 만화"})
		assert.Greater(t, clean, penalized)
	})

	t.Run("primary title match gets the exact bonus", func(t *testing.T) {
		score := scoreCandidate("소년이 온다", rankCandidate{title: "소년이 온다: 2024 노벨문학상 수상작가"})
		assert.GreaterOrEqual(t, score, float64(exactMatchBonus))
	})

	t.Run("sales point contributes log scaled", func(t *testing.T) {
		low := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자", salesPoint: 10})
		high := scoreCandidate("채식주의자", rankCandidate{title: "채식주의자", salesPoint: 100000})
		assert.Greater(t, high, low)
		assert.InDelta(t, float64(4*salesPointWeight), high-low, 0.001)
	})
}

func TestBestCandidate(t *testing.T) {
	t.Run("picks highest scorer", func(t *testing.T) {
		idx := bestCandidate("채식주의자", []rankCandidate{
			{title: "채식주의자 워크북", salesPoint: 50000},
			{title: "채식주의자", salesPoint: 2000},
			{title: "다른 책", salesPoint: 90000},
		})
		assert.Equal(t, 1, idx)
	})

	t.Run("everything below floor yields miss", func(t *testing.T) {
		idx := bestCandidate("채식주의자", []rankCandidate{
			{title: "전혀 관련 없는 초등 워크북"},
			{title: "무관한 만화책"},
		})
		assert.Equal(t, -1, idx)
	})

	t.Run("empty candidates yields miss", func(t *testing.T) {
		assert.Equal(t, -1, bestCandidate("채식주의자", nil))
	})

	t.Run("first of equal scores wins", func(t *testing.T) {
		idx := bestCandidate("채식주의자", []rankCandidate{
			{title: "채식주의자", salesPoint: 100},
			{title: "채식주의자", salesPoint: 100},
		})
		assert.Equal(t, 0, idx)
	})
}

func TestIsBundleTitle(t *testing.T) {
	assert.True(t, isBundleTitle("한강 소설 3종 세트"))
	assert.True(t, isBundleTitle("채식주의자 리마스터판 에디션"))
	assert.False(t, isBundleTitle("채식주의자"))
	assert.False(t, isBundleTitle("소년이 온다"))
}
