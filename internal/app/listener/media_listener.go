/*
 * @Description: 监听图片回收相关事件，记录日志并累计统计
 * @Author: 安知鱼
 * @Date: 2025-11-09 17:05:12
 * @LastEditTime: 2025-11-12 15:20:33
 * @LastEditors: 安知鱼
 */
package listener

import (
	"fmt"
	"sync/atomic"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const metricsNamespace = "anheyu_cms"

// MediaStats 是监听器累计的统计
type MediaStats struct {
	OrphanFailures   int64 `json:"orphan_failures"`
	DeletedDocuments int64 `json:"deleted_documents"`
	ReleasedImages   int64 `json:"released_images"`
}

// MediaListener 订阅 MediaOrphanFailed 和 DocumentDeleted 事件
type MediaListener struct {
	logger           zerolog.Logger
	orphanFailures   atomic.Int64
	deletedDocuments atomic.Int64
	releasedImages   atomic.Int64

	orphanFailuresTotal   *prometheus.CounterVec
	deletedDocumentsTotal *prometheus.CounterVec
	releasedImagesTotal   prometheus.Counter
}

// NewMediaListener 创建监听器、注册指标并完成订阅，reg 为 nil 时不导出指标
func NewMediaListener(eventBus *event.EventBus, reg prometheus.Registerer) (*MediaListener, error) {
	l := &MediaListener{
		logger: logging.Component("media_listener"),
		orphanFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "media_orphan_failures_total",
			Help:      "孤儿对象删除失败并进入重试队列的次数",
		}, []string{"field"}),
		deletedDocumentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "documents_deleted_total",
			Help:      "已删除的文档数量",
		}, []string{"collection"}),
		releasedImagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "media_released_images_total",
			Help:      "随文档删除而回收的图片数量",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{l.orphanFailuresTotal, l.deletedDocumentsTotal, l.releasedImagesTotal} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("注册媒体指标失败: %w", err)
			}
		}
	}

	eventBus.Subscribe(event.MediaOrphanFailed, l.handleOrphanFailed)
	eventBus.Subscribe(event.DocumentDeleted, l.handleDocumentDeleted)
	return l, nil
}

func (l *MediaListener) handleOrphanFailed(payload interface{}) {
	p, ok := payload.(event.OrphanFailedPayload)
	if !ok {
		l.logger.Error().Msgf("收到的 MediaOrphanFailed 事件负载类型不正确: %T", payload)
		return
	}
	l.orphanFailures.Add(1)
	l.orphanFailuresTotal.WithLabelValues(p.Field).Inc()
	l.logger.Warn().
		Str("key", p.Key).
		Str("owner_id", p.OwnerID).
		Str("field", p.Field).
		AnErr("cause", p.Err).
		Msg("孤儿对象删除失败，已进入重试队列")
}

func (l *MediaListener) handleDocumentDeleted(payload interface{}) {
	p, ok := payload.(event.DocumentDeletedPayload)
	if !ok {
		l.logger.Error().Msgf("收到的 DocumentDeleted 事件负载类型不正确: %T", payload)
		return
	}
	l.deletedDocuments.Add(1)
	l.releasedImages.Add(int64(p.Images))
	l.deletedDocumentsTotal.WithLabelValues(p.Collection).Inc()
	l.releasedImagesTotal.Add(float64(p.Images))
	l.logger.Info().
		Str("collection", p.Collection).
		Str("id", p.ID).
		Int("images", p.Images).
		Msg("文档已删除")
}

// Stats 返回当前统计的快照
func (l *MediaListener) Stats() MediaStats {
	return MediaStats{
		OrphanFailures:   l.orphanFailures.Load(),
		DeletedDocuments: l.deletedDocuments.Load(),
		ReleasedImages:   l.releasedImages.Load(),
	}
}
