package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDedupKey_Click(t *testing.T) {
	e1 := &TrackingEvent{EventType: EventTypeClick, AffiliateCode: "CODE123", IPAddress: "1.2.3.4"}
	e2 := &TrackingEvent{EventType: EventTypeClick, AffiliateCode: "CODE123", IPAddress: "1.2.3.4"}

	// 同一时间桶内，同推广码同IP的点击生成相同的去重键
	now := time.Unix(600, 0)
	assert.Equal(t, e1.BuildDedupKey(now), e2.BuildDedupKey(now))

	// 桶内任意时刻都落在同一个键上
	assert.Equal(t, e1.BuildDedupKey(time.Unix(600, 0)), e1.BuildDedupKey(time.Unix(899, 0)))

	// 跨桶后生成新键
	assert.NotEqual(t, e1.BuildDedupKey(time.Unix(899, 0)), e1.BuildDedupKey(time.Unix(900, 0)))

	// 不同IP的点击互不影响
	e3 := &TrackingEvent{EventType: EventTypeClick, AffiliateCode: "CODE123", IPAddress: "5.6.7.8"}
	assert.NotEqual(t, e1.BuildDedupKey(now), e3.BuildDedupKey(now))

	// 不同推广码的点击互不影响
	e4 := &TrackingEvent{EventType: EventTypeClick, AffiliateCode: "OTHER", IPAddress: "1.2.3.4"}
	assert.NotEqual(t, e1.BuildDedupKey(now), e4.BuildDedupKey(now))
}

func TestBuildDedupKey_Signup(t *testing.T) {
	now := time.Now()

	// 同一用户的注册全局只算一次，跨推广码也生成相同的键
	e1 := &TrackingEvent{EventType: EventTypeSignup, AffiliateCode: "CODE123", UserID: "u1"}
	e2 := &TrackingEvent{EventType: EventTypeSignup, AffiliateCode: "OTHER", UserID: "u1"}
	assert.Equal(t, e1.BuildDedupKey(now), e2.BuildDedupKey(now))

	// 不同用户生成不同的键
	e3 := &TrackingEvent{EventType: EventTypeSignup, AffiliateCode: "CODE123", UserID: "u2"}
	assert.NotEqual(t, e1.BuildDedupKey(now), e3.BuildDedupKey(now))
}

func TestBuildDedupKey_Questionnaire(t *testing.T) {
	now := time.Now()

	// 同一(测试ID, 会话ID)生成相同的键
	e1 := &TrackingEvent{EventType: EventTypeQuestionnaire, TestID: "t1", SessionID: "s1"}
	e2 := &TrackingEvent{EventType: EventTypeQuestionnaire, TestID: "t1", SessionID: "s1"}
	assert.Equal(t, e1.BuildDedupKey(now), e2.BuildDedupKey(now))

	// 换会话即算新事件
	e3 := &TrackingEvent{EventType: EventTypeQuestionnaire, TestID: "t1", SessionID: "s2"}
	assert.NotEqual(t, e1.BuildDedupKey(now), e3.BuildDedupKey(now))
}

func TestBuildDedupKey_Purchase(t *testing.T) {
	now := time.Now()

	// 购买事件永不去重，同一事件每次生成的键都不同
	e := &TrackingEvent{EventType: EventTypePDFPurchase, UserID: "u1"}
	assert.NotEqual(t, e.BuildDedupKey(now), e.BuildDedupKey(now))
}
