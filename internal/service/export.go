package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"ID", "Fecha", "Hora", "Cliente", "Email", "Teléfono",
	"Tipo de Visa", "Estado", "Precio", "Pago", "Invitados", "Comentario", "Creada",
}

// ExportBookings renders the booking list as a spreadsheet for the
// admin download button.
func (s *AdminService) ExportBookings(ctx context.Context, status string) (*excelize.File, error) {
	bookings, err := s.ListBookings(ctx, status, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Reservas"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, b := range bookings {
		slotDate, slotTime := "", ""
		if slot, err := s.store.GetSlot(ctx, b.SlotID); err == nil {
			slotDate, slotTime = slot.Date, slot.TimeSlot
		}

		row := []interface{}{
			b.ID, slotDate, slotTime, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.VisaType, b.Status, b.Price, b.PaymentID, b.Invitados, b.Comment,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	s.logger.Info().Int("bookings", len(bookings)).Str("status", status).Msg("Bookings exported")
	return f, nil
}
