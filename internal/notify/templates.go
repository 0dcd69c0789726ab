package notify

import (
	"fmt"
	"time"

	"github.com/kirinyoku/washq/internal/domain"
)

const dateLayout = "02/01/2006 15:04"

var phaseText = map[domain.BookingStatus]string{
	domain.StatusPickupAssigned: "🏃‍♂️ พนักงานกำลังเดินทางไปรับรถ",
	domain.StatusPickedUp:       "🚗 พนักงานรับรถเรียบร้อยแล้ว",
	domain.StatusInWash:         "🧽 รถของคุณกำลังล้าง",
	domain.StatusReadyForReturn: "✨ ล้างเสร็จแล้ว พร้อมส่งคืน",
	domain.StatusOnTheWayReturn: "🚚 กำลังเดินทางส่งรถคืน",
	domain.StatusCompleted:      "🎉 เสร็จสิ้น ขอบคุณที่ใช้บริการ",
}

// Render builds the customer text for a booking that just entered its
// current status. The second result is false for statuses that are not
// announced.
func Render(b domain.Booking, note string, loc *time.Location) (string, bool) {
	switch b.Status {
	case domain.StatusHoldPendingPayment:
		return fmt.Sprintf(
			"🎯 จองคิวสำเร็จ!\n\n📅 วันที่: %s\n⏰ หมดอายุ: %s\n🆔 รหัสจอง: %s\n\n💳 กรุณาชำระเงินมัดจำ %s บาท และอัปโหลดสลิปภายในเวลาที่กำหนด",
			b.SlotStart.In(loc).Format(dateLayout),
			b.HoldExpiresAt.In(loc).Format(dateLayout),
			b.ID,
			baht(b.DepositMinor),
		), true
	case domain.StatusAwaitShopConfirm:
		return "📋 จองแล้ว (รอตรวจสลิป)\n\nเรากำลังตรวจสอบสลิปการชำระเงินของคุณ กรุณารอสักครู่...", true
	case domain.StatusConfirmed:
		return "✅ ร้านยืนยันคิวของคุณแล้ว\n\nเรียบร้อย! คิวของคุณได้รับการยืนยันแล้ว เตรียมรถให้พร้อมนะคะ", true
	case domain.StatusRejected:
		if note == "" {
			note = "-"
		}
		return fmt.Sprintf("❌ สลิปไม่ผ่าน\n\nเหตุผล: %s\n\nกรุณาอัปโหลดสลิปใหม่หรือติดต่อเรา", note), true
	case domain.StatusHoldExpired:
		return "⏰ คิวหมดอายุแล้ว\n\nคิวของคุณหมดอายุเนื่องจากไม่ได้ชำระเงินภายในเวลาที่กำหนด", true
	case domain.StatusCancelled:
		return fmt.Sprintf("🚫 ยกเลิกคิวแล้ว\n\n🆔 รหัสจอง: %s", b.ID), true
	case domain.StatusNoShow:
		return "📋 สถานะอัปเดต\n\nไม่พบรถ ณ จุดรับตามเวลานัดหมาย", true
	}

	if text, ok := phaseText[b.Status]; ok {
		return "📋 สถานะอัปเดต\n\n" + text, true
	}

	return "", false
}

func baht(minor int64) string {
	if minor%100 == 0 {
		return fmt.Sprintf("%d", minor/100)
	}
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

var statusText = map[domain.BookingStatus]string{
	domain.StatusHoldPendingPayment: "รอชำระเงิน",
	domain.StatusAwaitShopConfirm:   "รอตรวจสอบสลิป",
	domain.StatusConfirmed:          "ยืนยันแล้ว",
	domain.StatusPickupAssigned:     "พนักงานกำลังไปรับรถ",
	domain.StatusPickedUp:           "รับรถแล้ว",
	domain.StatusInWash:             "กำลังล้างรถ",
	domain.StatusReadyForReturn:     "พร้อมส่งคืน",
	domain.StatusOnTheWayReturn:     "กำลังส่งรถคืน",
	domain.StatusCompleted:          "เสร็จสิ้น",
	domain.StatusReviewed:           "รีวิวแล้ว",
	domain.StatusRejected:           "ปฏิเสธ",
	domain.StatusHoldExpired:        "หมดอายุ",
	domain.StatusCancelled:          "ยกเลิกแล้ว",
	domain.StatusNoShow:             "ไม่มาตามนัด",
}

// StatusText is the short Thai label of a status, or the raw status when
// none is defined.
func StatusText(s domain.BookingStatus) string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return string(s)
}

// LatestStatus answers a customer's status query in chat.
func LatestStatus(b domain.Booking, loc *time.Location) string {
	return fmt.Sprintf(
		"📋 สถานะล่าสุดของคุณ\n\n🆔 รหัสจอง: %s\n📅 วันที่: %s\n📊 สถานะ: %s",
		b.ID,
		b.SlotStart.In(loc).Format(dateLayout),
		StatusText(b.Status),
	)
}
