// Flow definitions: project intake, broadcast drafting, and the material
// calculator. Each flow is data for the dialogue engine — an ordered list of
// steps whose handlers validate one input, stash it on the state, and decide
// the transition. Entry prompts are sent by the router when a flow starts.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/dialogue"
	"github.com/finishworks/crewbot/internal/domain"
	"github.com/finishworks/crewbot/internal/materials"
	"github.com/finishworks/crewbot/internal/services"
)

// Flow names.
const (
	flowProjectIntake = "project-intake"
	flowBroadcast     = "broadcast"
	flowCalculator    = "calculator"
)

// Collected field names.
const (
	fieldAddress     = "address"
	fieldDescription = "description"
	fieldDesignPath  = "design_path"
	fieldMaterial    = "material_type"
	fieldArea        = "area"
	fieldThickness   = "thickness"
)

const (
	msgBadNumber   = "❌ Пожалуйста, введите корректное положительное число."
	msgBadMaterial = "❌ Пожалуйста, выберите материал из списка."
	msgBadPDF      = "❌ Пожалуйста, прикрепите файл в формате PDF."
)

// parsePositiveNumber accepts both '.' and ',' as the decimal separator and
// requires a strictly positive value.
func parsePositiveNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// projectIntakeFlow collects address → description → PDF attachment → lock
// code, then persists the project. Cancelling after the attachment was
// downloaded removes the file again.
func (r *Router) projectIntakeFlow() *dialogue.Flow {
	return &dialogue.Flow{
		Name: flowProjectIntake,
		Steps: []dialogue.Step{
			{ID: fieldAddress, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				address := strings.TrimSpace(in.Text)
				if address == "" {
					return dialogue.Reject(dialogue.Reply{Text: "🏗 Введите адрес объекта:"}), nil
				}
				st.Set(fieldAddress, address)
				return dialogue.Next(dialogue.Reply{Text: "📝 Введите описание проекта:"}), nil
			}},
			{ID: fieldDescription, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				st.Set(fieldDescription, strings.TrimSpace(in.Text))
				return dialogue.Next(dialogue.Reply{Text: "📎 Прикрепите PDF файл с дизайн-проектом:"}), nil
			}},
			{ID: fieldDesignPath, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				doc := in.Document
				if doc == nil || !strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf") {
					return dialogue.Reject(dialogue.Reply{Text: msgBadPDF}), nil
				}
				dest := r.files.TempPath(doc.FileName)
				if err := r.downloader.Download(ctx, doc.FileID, dest); err != nil {
					return dialogue.Result{}, fmt.Errorf("download design attachment: %w", err)
				}
				st.Set(fieldDesignPath, dest)
				return dialogue.Next(dialogue.Reply{Text: "🔑 Введите код доступа к замку:"}), nil
			}},
			{ID: "lock_code", Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				// The attachment survives the intake; move it out of the
				// sweepable temp area before persisting its path.
				designPath, err := r.files.Promote(st.GetString(fieldDesignPath))
				if err != nil {
					return dialogue.Result{}, fmt.Errorf("promote design attachment: %w", err)
				}
				st.Set(fieldDesignPath, designPath)
				p, err := r.projects.Create(ctx, services.CreateProjectInput{
					Address:       st.GetString(fieldAddress),
					Description:   st.GetString(fieldDescription),
					DesignPDFPath: designPath,
					LockCode:      strings.TrimSpace(in.Text),
					CreatedBy:     in.UserID,
				})
				if err != nil {
					return dialogue.Result{}, err
				}
				return dialogue.Done(dialogue.Reply{
					Text: fmt.Sprintf("✅ Проект успешно добавлен (ID: %d)", p.ID),
					Menu: r.menus.MainMenu(domain.RoleAdmin),
				}), nil
			}},
		},
		Cleanup: func(ctx context.Context, st *dialogue.State) {
			r.files.Remove(st.GetString(fieldDesignPath))
		},
	}
}

// broadcastFlow collects the announcement text, then parks it as a pending
// draft behind an inline confirm/edit/cancel menu. The confirmation is a
// terminal state of the interaction, not a flow step: the flow itself is
// already resolved when the menu appears.
func (r *Router) broadcastFlow() *dialogue.Flow {
	return &dialogue.Flow{
		Name: flowBroadcast,
		Steps: []dialogue.Step{
			{ID: "message", Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				text := strings.TrimSpace(in.Text)
				if text == "" {
					return dialogue.Reject(dialogue.Reply{Text: "📢 Введите сообщение для рассылки всем работникам:"}), nil
				}
				r.setPendingBroadcast(in.UserID, text)
				return dialogue.Done(dialogue.Reply{
					Text: fmt.Sprintf("📢 Сообщение для рассылки:\n\n%s\n\nОтправить?", text),
					Menu: broadcastConfirmMenu(),
				}), nil
			}},
		},
	}
}

// calculatorFlow collects material → area → thickness and finishes with a
// persisted calculation. The thickness step is skipped entirely for
// thickness-independent materials: the area handler completes the flow on
// its own in that case.
func (r *Router) calculatorFlow() *dialogue.Flow {
	return &dialogue.Flow{
		Name: flowCalculator,
		Steps: []dialogue.Step{
			{ID: fieldMaterial, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				name := strings.ToLower(strings.TrimSpace(in.Text))
				if _, ok := materials.Lookup(name); !ok {
					return dialogue.Reject(dialogue.Reply{Text: msgBadMaterial}), nil
				}
				st.Set(fieldMaterial, name)
				return dialogue.Next(dialogue.Reply{Text: "📏 Введите площадь в м²:"}), nil
			}},
			{ID: fieldArea, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				area, ok := parsePositiveNumber(in.Text)
				if !ok {
					return dialogue.Reject(dialogue.Reply{Text: msgBadNumber}), nil
				}
				st.Set(fieldArea, area)

				m, _ := materials.Lookup(st.GetString(fieldMaterial))
				if m.ThicknessDependent {
					return dialogue.Next(dialogue.Reply{Text: "📐 Введите толщину слоя в мм:"}), nil
				}
				replies, err := r.finishCalculation(ctx, st, in.UserID)
				if err != nil {
					return dialogue.Result{}, err
				}
				return dialogue.Done(replies...), nil
			}},
			{ID: fieldThickness, Handle: func(ctx context.Context, st *dialogue.State, in chat.Inbound) (dialogue.Result, error) {
				thickness, ok := parsePositiveNumber(in.Text)
				if !ok {
					return dialogue.Reject(dialogue.Reply{Text: msgBadNumber}), nil
				}
				st.Set(fieldThickness, thickness)
				replies, err := r.finishCalculation(ctx, st, in.UserID)
				if err != nil {
					return dialogue.Result{}, err
				}
				return dialogue.Done(replies...), nil
			}},
		},
	}
}

// finishCalculation computes and persists the result, shows the result card,
// and, when projects exist, offers to link the calculation to one. The offer
// is non-blocking: it only parks a pending link that the next project
// selection may consume.
func (r *Router) finishCalculation(ctx context.Context, st *dialogue.State, userID int64) ([]dialogue.Reply, error) {
	materialType := st.GetString(fieldMaterial)
	area := st.GetFloat(fieldArea)
	thickness := st.GetFloat(fieldThickness)

	calc, err := r.calcs.Run(ctx, userID, materialType, area, thickness)
	if err != nil {
		return nil, err
	}
	result := r.calculator.FormatResult(materialType, area, thickness, calc.Quantity)

	projects, err := r.projects.List(ctx)
	if err != nil || len(projects) == 0 {
		// A listing failure only costs the link offer; the result stands.
		return []dialogue.Reply{{Text: result, Menu: r.menus.MainMenu(r.roleOf(ctx, userID))}}, nil
	}

	r.setPendingLink(userID, pendingLink{CalcID: calc.ID, Result: result})
	return []dialogue.Reply{
		{Text: result},
		{Text: "🏗 Хотите привязать расчет к проекту?", Menu: projectsMenu(projects)},
	}, nil
}
