package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"deptdesk/internal/dto"
)

func TestExportXLSX_SheetPerHall(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")
	seedBooking(env, "b2", "A101", "2025-11-02", "11:00", "12:00", "u-chen", "Dr. Chen")
	seedBooking(env, "b3", "B202", "2025-11-03", "09:00", "10:00", "u-rao", "Dr. Rao")

	buf, filename, err := svc.ExportXLSX(context.Background(), &dto.ExportBookingsRequest{})
	if err != nil {
		t.Fatalf("ExportXLSX should succeed: %v", err)
	}
	if filename != "hall_bookings.xlsx" {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != "A101" {
		t.Fatalf("expected one sheet per configured hall, got %v", sheets)
	}

	rows, err := f.GetRows("A101")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "09:00" || rows[2][1] != "11:00" {
		t.Errorf("rows should be ordered by start time: %v", rows)
	}
	if rows[2][5] != "Dr. Chen" {
		t.Errorf("expected booked-by column, got %v", rows[2])
	}
}

func TestExportXLSX_SingleHall(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")

	buf, filename, err := svc.ExportXLSX(context.Background(), &dto.ExportBookingsRequest{Hall: "b202"})
	if err != nil {
		t.Fatalf("ExportXLSX should succeed: %v", err)
	}
	if filename != "hall_bookings_B202.xlsx" {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "B202" {
		t.Errorf("expected only B202, got %v", sheets)
	}
}

func TestExportXLSX_UnknownHall(t *testing.T) {
	svc, _ := setupTestBookingService(nil)
	if _, _, err := svc.ExportXLSX(context.Background(), &dto.ExportBookingsRequest{Hall: "Z1"}); !errors.Is(err, ErrUnknownHall) {
		t.Fatalf("expected ErrUnknownHall, got %v", err)
	}
}

func TestExportICS(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:30", "u-rao", "Dr. Rao")

	body, filename, err := svc.ExportICS(context.Background(), &dto.ExportBookingsRequest{Hall: "A101"})
	if err != nil {
		t.Fatalf("ExportICS should succeed: %v", err)
	}
	if filename != "hall_bookings_A101.ics" {
		t.Errorf("unexpected filename %q", filename)
	}

	s := string(body)
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:b1@deptdesk", "DTSTART:20251102T090000", "DTEND:20251102T103000", "LOCATION:A101"} {
		if !strings.Contains(s, want) {
			t.Errorf("calendar missing %q:\n%s", want, s)
		}
	}
}

func TestSheetName(t *testing.T) {
	if got := sheetName("Lab [1]/2"); got != "Lab _1__2" {
		t.Errorf("unexpected %q", got)
	}
	if got := sheetName(strings.Repeat("x", 40)); len(got) != 31 {
		t.Errorf("expected 31 chars, got %d", len(got))
	}
}
