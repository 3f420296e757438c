// Package session 研究会话的持久化与阶段生命周期
//
// 会话以 JSON 快照形式存入 KV 存储（每项目一份，整体覆盖写入）。
// 阶段切换不做转移校验，用户可以在任意阶段之间跳转。
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wordpilot/internal/assistant/phase"
	"wordpilot/internal/shared/eventbus"
	"wordpilot/internal/shared/kv"
	"wordpilot/internal/shared/model"
	"wordpilot/internal/shared/storage"
	"wordpilot/pkg/logging"
)

// ============================================================================
// Repository - 会话快照存取
// ============================================================================

// Repository 会话快照仓库
type Repository struct {
	kv kv.Store
}

// NewRepository 创建会话仓库
func NewRepository(store kv.Store) *Repository {
	return &Repository{kv: store}
}

func sessionKey(projectID string) string {
	return kv.KeyResearchSession + projectID
}

// Load 加载项目会话，首次访问时按默认值创建并持久化
func (r *Repository) Load(ctx context.Context, projectID string) (*model.ResearchSession, error) {
	raw, ok, err := r.kv.Get(ctx, sessionKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !ok {
		session := model.NewResearchSession(projectID)
		if err := r.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	session := &model.ResearchSession{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// 补齐缺失的阶段条目（历史快照兼容）
	if session.Phases == nil {
		session.Phases = make(map[int]model.PhaseState)
	}
	for p := model.PhasePlanning; p <= model.PhaseFactCheck; p++ {
		if _, ok := session.Phases[p]; !ok {
			session.Phases[p] = model.PhaseState{Status: model.PhaseStatusNotStarted}
		}
	}
	if session.CurrentPhase < model.PhasePlanning || session.CurrentPhase > model.PhaseFactCheck {
		session.CurrentPhase = model.PhasePlanning
	}
	return session, nil
}

// Save 整体覆盖写入会话快照
func (r *Repository) Save(ctx context.Context, session *model.ResearchSession) error {
	session.UpdatedAt = time.Now()
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.kv.Set(ctx, sessionKey(session.ProjectID), string(raw)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SetPhase 切换当前阶段（不校验转移顺序），目标阶段首次进入时标记为进行中
func (r *Repository) SetPhase(ctx context.Context, projectID string, phaseNum int) (*model.ResearchSession, error) {
	if phaseNum < model.PhasePlanning || phaseNum > model.PhaseFactCheck {
		return nil, fmt.Errorf("invalid phase: %d", phaseNum)
	}

	session, err := r.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	session.CurrentPhase = phaseNum
	if state := session.Phases[phaseNum]; state.Status == model.PhaseStatusNotStarted {
		session.Phases[phaseNum] = model.PhaseState{Status: model.PhaseStatusInProgress}
	}

	if err := r.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ============================================================================
// Service - 规划结果应用
// ============================================================================

// Service 会话业务逻辑：将规划阶段的 JSON 产物落地
type Service struct {
	sessions *Repository
	items    storage.ResearchItemStore
	bus      eventbus.ItemEventBus
	logger   *logging.Logger
}

// NewService 创建会话服务
func NewService(sessions *Repository, items storage.ResearchItemStore, bus eventbus.ItemEventBus, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default("session")
	}
	return &Service{sessions: sessions, items: items, bus: bus, logger: logger}
}

// Sessions 返回底层会话仓库
func (s *Service) Sessions() *Repository {
	return s.sessions
}

// ApplyPhase1 应用规划阶段的 JSON 产物
//
// 1. 将 bookPlan / similarWorks / researchPlan 写入会话
// 2. 按研究计划批量创建研究条目（每个 itemsToResearch 一条，data 为空）
// 3. 条目创建成功时标记规划阶段完成
// 4. 保存会话快照
//
// 部分成功策略：条目创建失败时规划数据仍然保存，错误返回给调用方。
func (s *Service) ApplyPhase1(ctx context.Context, projectID string, result *phase.Phase1Result) error {
	session, err := s.sessions.Load(ctx, projectID)
	if err != nil {
		return err
	}

	session.BookPlan = result.BookPlan
	session.SimilarWorks = result.SimilarWorks
	session.ResearchPlan = result.ResearchPlan

	itemsErr := s.createPlanItems(ctx, projectID, result.ResearchPlan)
	if itemsErr == nil {
		session.MarkPhaseComplete(model.PhasePlanning)
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return err
	}

	if itemsErr != nil {
		s.logger.WithContext(ctx).WithError(itemsErr).Warn("Plan saved but research item creation failed",
			"project_id", projectID)
		return fmt.Errorf("plan saved but item creation failed: %w", itemsErr)
	}
	return nil
}

// createPlanItems 按研究计划批量创建空的研究条目并发布创建事件
func (s *Service) createPlanItems(ctx context.Context, projectID string, plan *model.ResearchPlan) error {
	if plan == nil {
		return nil
	}

	now := time.Now()
	var items []*model.ResearchItem
	for _, section := range plan.Sections {
		for _, name := range section.ItemsToResearch {
			items = append(items, &model.ResearchItem{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Section:   section.Title,
				Name:      name,
				Data:      map[string]string{},
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}
	if len(items) == 0 {
		return nil
	}

	if err := s.items.CreateResearchItems(ctx, items); err != nil {
		return err
	}

	if s.bus != nil {
		for _, item := range items {
			event := &eventbus.ItemEvent{
				Type:      eventbus.ItemEventCreated,
				ProjectID: projectID,
				ItemID:    item.ID,
				ItemName:  item.Name,
				Timestamp: now,
			}
			if err := s.bus.PublishItemEvent(ctx, projectID, event); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish item event",
					"item_id", item.ID)
			}
		}
	}
	return nil
}
