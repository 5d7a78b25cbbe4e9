package checklist

import "github.com/0xcro3dile/reqcheck/internal/domain/entities"

var fallbackRU = entities.Checklist{
	{
		Aspect: "Функциональные требования",
		Questions: []string{
			"Что система должна делать? Для чего она разрабатывается?",
			"Каковы сценарии использования системы? Кто в них участвует?",
			"Кто вводит данные в систему? Какие?",
			"Кто получает данные из системы? Какие?",
			"Какие отчеты и выходные формы должна формировать система?",
		},
	},
	{
		Aspect: "Требования к безопасности",
		Questions: []string{
			"Какие стандарты и нормативы по информационной безопасности должны быть соблюдены?",
			"Как осуществляется аутентификация и авторизация пользователей?",
			"Как защищаются данные при хранении и передаче?",
			"Какие события должны регистрироваться в журнале аудита?",
			"Каковы требования к резервному копированию и восстановлению данных?",
		},
	},
	{
		Aspect: "Требования к удобству использования",
		Questions: []string{
			"Кто является пользователями системы и какова их квалификация?",
			"Какие устройства и браузеры должен поддерживать пользовательский интерфейс?",
			"Каковы требования к доступности интерфейса для людей с ограниченными возможностями?",
			"На каких языках должен быть доступен интерфейс?",
			"Какая справочная документация и обучение пользователей требуются?",
		},
	},
}

var fallbackEN = entities.Checklist{
	{
		Aspect: "Functional requirements",
		Questions: []string{
			"What must the system do? Why is it being built?",
			"What are the system's use cases? Who takes part in them?",
			"Who enters data into the system? Which data?",
			"Who receives data from the system? Which data?",
			"Which reports and output forms must the system produce?",
		},
	},
	{
		Aspect: "Security requirements",
		Questions: []string{
			"Which information security standards and regulations must be met?",
			"How are users authenticated and authorized?",
			"How is data protected at rest and in transit?",
			"Which events must be recorded in the audit log?",
			"What are the backup and data recovery requirements?",
		},
	},
	{
		Aspect: "Usability requirements",
		Questions: []string{
			"Who are the system's users and what is their skill level?",
			"Which devices and browsers must the user interface support?",
			"What are the accessibility requirements for the interface?",
			"In which languages must the interface be available?",
			"What help documentation and user training are required?",
		},
	},
}

// Fallback returns the default checklist used when generated output cannot be parsed:
// functionality, security and usability, five questions each.
func Fallback() entities.Checklist {
	return fallbackRU.Clone()
}

// FallbackFor returns the fallback checklist for a locale, defaulting to Russian.
func FallbackFor(locale string) entities.Checklist {
	if locale == "en" {
		return fallbackEN.Clone()
	}
	return fallbackRU.Clone()
}
