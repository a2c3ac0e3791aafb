package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	VisaEstudio = "estudio"
	VisaNomada  = "nomada"
	VisaTrabajo = "trabajo"
)

// VisaTypes lists the selectable consultation categories.
var VisaTypes = []string{VisaEstudio, VisaNomada, VisaTrabajo}

func ValidVisaType(v string) bool {
	for _, t := range VisaTypes {
		if t == v {
			return true
		}
	}
	return false
}

const (
	// DefaultTimezone is the consultancy's local timezone.
	DefaultTimezone = "Europe/Madrid"

	DefaultSlotDurationMinutes = 30
	DefaultSlotPriceEUR        = 25.0
	DefaultMaxQuestions        = 5
	DefaultAvailabilityWindow  = 30 // days

	// FallbackWindowDays bounds the degraded-mode date listing.
	FallbackWindowDays = 14
)

// FallbackSlotTimes is the fixed grid served when the store is unreachable.
var FallbackSlotTimes = []string{"09:00", "10:30", "12:00", "15:00", "17:30"}

// DefaultAIContext seeds admin_config on first run.
const DefaultAIContext = `Eres un asistente especializado en asesoría de visas para España. Tu objetivo es ayudar a los usuarios a determinar qué tipo de visa necesitan.

TIPOS DE VISA DISPONIBLES:
1. ESTUDIO - Para estudiantes que quieren estudiar en España
2. NÓMADA DIGITAL - Para trabajadores remotos y freelancers
3. TRABAJO - Para empleados de empresas españolas

INSTRUCCIONES:
- Haz máximo 5 preguntas específicas para determinar el tipo de visa
- Pregunta sobre: situación laboral, estudios, nacionalidad, tiempo de estancia, ingresos
- Después de 5 preguntas, determina automáticamente el tipo de visa
- Sé profesional, claro y directo
- Solo habla de visas para España`
