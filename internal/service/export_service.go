package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	"deptdesk/internal/rules"
)

var (
	ErrExportGenerateFail = errors.New("generate export file failed")
)

// ═══════════════════════════════════════════════════════════
// ExportXLSX 将礼堂预约导出为 Excel
// ═══════════════════════════════════════════════════════════
//
// 每个礼堂一个工作表，行按日期、开始时间排序
// 列: 日期 | 开始 | 结束 | 课程编号 | 课程 | 预约人

func (s *bookingService) ExportXLSX(ctx context.Context, req *dto.ExportBookingsRequest) (*bytes.Buffer, string, error) {
	bookings, err := s.exportRows(ctx, req)
	if err != nil {
		return nil, "", err
	}

	byHall := make(map[string][]model.HallBooking)
	for _, b := range bookings {
		byHall[b.Hall] = append(byHall[b.Hall], b)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"Date", "Start", "End", "Course No.", "Course", "Booked by"}
	widths := []float64{12, 8, 8, 14, 36, 24}

	first := true
	for _, hall := range s.exportHalls(byHall) {
		if req.Hall != "" && hall != req.Hall {
			continue
		}
		rows := byHall[hall]

		sheet := sheetName(hall)
		idx, err := f.NewSheet(sheet)
		if err != nil {
			s.logger.Error("create sheet failed", zap.String("hall", hall), zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
		if first {
			f.SetActiveSheet(idx)
			first = false
		}

		for i, h := range headers {
			col := colName(i)
			f.SetColWidth(sheet, col, col, widths[i])
			f.SetCellValue(sheet, cell(col, 1), h)
		}
		f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

		for r, b := range rows {
			row := r + 2
			values := []string{b.Date, b.StartTime, b.EndTime, b.CourseNumber, b.CourseName, b.OwnerName}
			for i, v := range values {
				f.SetCellValue(sheet, cell(colName(i), row), v)
			}
		}
	}
	// excelize 默认带 Sheet1，已有礼堂工作表后删除
	if !first {
		f.DeleteSheet("Sheet1")
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("write xlsx failed", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, exportFilename(req, "xlsx"), nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS 将礼堂预约导出为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 时间为 floating 格式（无 TZID），日期与时刻均为不带时区的标签

func (s *bookingService) ExportICS(ctx context.Context, req *dto.ExportBookingsRequest) ([]byte, string, error) {
	bookings, err := s.exportRows(ctx, req)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//deptdesk//hall bookings//EN")
	cal.SetName("Lecture hall bookings")

	stamp := time.Now().UTC()
	for _, b := range bookings {
		start, errStart := bookingTime(b.Date, b.StartTime)
		end, errEnd := bookingTime(b.Date, b.EndTime)
		if errStart != nil || errEnd != nil {
			s.logger.Warn("skip booking with unparseable time", zap.String("booking_id", b.BookingID))
			continue
		}

		ev := cal.AddEvent(b.BookingID + "@deptdesk")
		ev.SetDtStampTime(stamp)
		ev.SetProperty(ics.ComponentPropertyDtStart, start.Format("20060102T150405"))
		ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format("20060102T150405"))
		ev.SetSummary(fmt.Sprintf("%s %s", b.CourseNumber, b.CourseName))
		ev.SetLocation(b.Hall)
		ev.SetDescription("Booked by " + b.OwnerName)
		if !b.UpdatedAt.IsZero() {
			ev.SetModifiedAt(b.UpdatedAt.UTC())
		}
	}

	return []byte(cal.Serialize()), exportFilename(req, "ics"), nil
}

// ── 辅助函数 ──

// exportHalls 先列出已配置的礼堂，再列出区间内仍有预约的
// 已下线礼堂
func (s *bookingService) exportHalls(byHall map[string][]model.HallBooking) []string {
	halls := append([]string(nil), s.halls...)
	var extra []string
	for h := range byHall {
		if _, ok := s.canonicalHall(h); !ok {
			extra = append(extra, h)
		}
	}
	sort.Strings(extra)
	return append(halls, extra...)
}

func (s *bookingService) exportRows(ctx context.Context, req *dto.ExportBookingsRequest) ([]model.HallBooking, error) {
	f := repository.BookingFilter{DateFrom: req.DateFrom, DateTo: req.DateTo}
	if req.Hall != "" {
		hall, ok := s.canonicalHall(req.Hall)
		if !ok {
			return nil, ErrUnknownHall
		}
		f.Hall = hall
		req.Hall = hall
	}

	bookings, err := s.repo.Booking.List(ctx, f)
	if err != nil {
		s.logger.Error("list bookings for export failed", zap.Error(err))
		return nil, err
	}
	return bookings, nil
}

func bookingTime(date, clock string) (time.Time, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, err
	}
	m, err := rules.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(m) * time.Minute), nil
}

func exportFilename(req *dto.ExportBookingsRequest, ext string) string {
	name := "hall_bookings"
	if req.Hall != "" {
		name += "_" + req.Hall
	}
	if req.DateFrom != "" {
		name += "_from_" + req.DateFrom
	}
	if req.DateTo != "" {
		name += "_to_" + req.DateTo
	}
	return name + "." + ext
}

// sheetName 去除 Excel 禁用字符并限制 31 个字符
func sheetName(hall string) string {
	r := []rune(hall)
	out := make([]rune, 0, len(r))
	for _, c := range r {
		switch c {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	if len(out) > 31 {
		out = out[:31]
	}
	return string(out)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
