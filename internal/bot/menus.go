// Package bot routes inbound chat events to commands, menu handlers, and
// dialogue flows. This file defines the keyboards: the role-dependent main
// menu and the inline action menus bound to specific records.
package bot

import (
	"fmt"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/domain"
	"github.com/finishworks/crewbot/internal/materials"
)

// Main menu button labels. The router matches inbound text against these.
const (
	btnCalculator    = "📊 Калькулятор материалов"
	btnProjects      = "🏗 Проекты"
	btnWorkers       = "👥 Работники"
	btnBroadcast     = "📢 Рассылка"
	btnMessages      = "📩 Сообщения"
	btnRequestAccess = "🚪 Запросить доступ"
	btnBack          = "🔙 Назад"

	projectButtonPrefix = "🏠 "
)

// Menus builds keyboards; it satisfies services.MenuProvider.
type Menus struct{}

// MainMenu returns the persistent button grid for a role. Pending and
// rejected users only see the access-request button.
func (Menus) MainMenu(role domain.Role) chat.Menu {
	switch role {
	case domain.RoleAdmin:
		return chat.ReplyMenu{
			{btnCalculator},
			{btnProjects, btnWorkers},
			{btnBroadcast, btnMessages},
		}
	case domain.RoleWorker:
		return chat.ReplyMenu{
			{btnCalculator},
			{btnProjects, btnMessages},
		}
	default:
		return chat.ReplyMenu{{btnRequestAccess}}
	}
}

// materialsMenu lists catalog materials two per row, plus a back button.
func materialsMenu() chat.ReplyMenu {
	names := materials.Names()
	menu := chat.ReplyMenu{}
	for i := 0; i < len(names); i += 2 {
		row := names[i:min(i+2, len(names))]
		menu = append(menu, row)
	}
	menu = append(menu, []string{btnBack})
	return menu
}

// projectsMenu lists projects by address, one per row, plus a back button.
func projectsMenu(projects []domain.Project) chat.ReplyMenu {
	menu := make(chat.ReplyMenu, 0, len(projects)+1)
	for _, p := range projects {
		menu = append(menu, []string{projectButtonPrefix + p.Address})
	}
	menu = append(menu, []string{btnBack})
	return menu
}

// backMenu is shown while a flow is collecting input.
func backMenu() chat.ReplyMenu {
	return chat.ReplyMenu{{btnBack}}
}

// workersManagementMenu is the admin panel entry for access management.
func workersManagementMenu() chat.InlineMenu {
	return chat.InlineMenu{
		{{Text: "📝 Заявки на доступ", Data: "pending_workers"}},
		{{Text: "👷 Список работников", Data: "workers_list"}},
	}
}

// projectDetailsMenu exposes the per-project actions.
func projectDetailsMenu(projectID uint) chat.InlineMenu {
	return chat.InlineMenu{
		{{Text: "📝 Расчеты", Data: fmt.Sprintf("calculations_%d", projectID)}},
		{{Text: "📄 Дизайн-проект", Data: fmt.Sprintf("design_%d", projectID)}},
		{{Text: "🔑 Код замка", Data: fmt.Sprintf("lock_%d", projectID)}},
	}
}

// broadcastConfirmMenu resolves a drafted broadcast.
func broadcastConfirmMenu() chat.InlineMenu {
	return chat.InlineMenu{
		{{Text: "✅ Отправить всем", Data: "broadcast_confirm"}},
		{{Text: "✏️ Редактировать", Data: "broadcast_edit"}},
		{{Text: "❌ Отменить", Data: "broadcast_cancel"}},
	}
}
