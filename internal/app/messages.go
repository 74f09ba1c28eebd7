package app

import (
	"fmt"
	"time"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// questionKind selects the validator applied to an onboarding answer.
type questionKind int

const (
	kindText questionKind = iota
	kindYesNo
	kindTime
	kindDate
)

type question struct {
	Field string
	Text  string
	Kind  questionKind
}

// onboardingQuestions is the fixed ordered intake questionnaire. Step N
// (1-based) asks onboardingQuestions[N-1].
var onboardingQuestions = []question{
	{Field: "name", Text: "Halo, aku RemindCare. Boleh tau nama ibu? 😊"},
	{Field: "age", Text: "Usia berapa? 🎂"},
	{Field: "pregnancy_number", Text: "Kehamilan ke berapa? 🤰"},
	{Field: "lmp", Text: "HPHT (Hari Pertama Haid Terakhir) kapan? Format tanggal-bulan-tahun, contoh: 31-01-2024 📅", Kind: kindDate},
	{Field: "routine_meds", Text: "Apakah rutin mengkonsumsi obat? (ya/tidak) 💊", Kind: kindYesNo},
	{Field: "tea", Text: "Masih mengkonsumsi teh? (ya/tidak) 🍵", Kind: kindYesNo},
	{Field: "reminder_person", Text: "Siapa yang biasanya ngingetin buat minum obat? 👥"},
	{Field: "allow_reminders", Text: "Mau diingatkan RemindCare untuk minum obat? (ya/tidak) 🔔", Kind: kindYesNo},
	{Field: "reminder_time", Text: "RemindCare bakal mengingatkan tiap hari lewat WhatsApp. Mau diingatkan setiap jam berapa? (format 24 jam, contoh 17:00) ⏰", Kind: kindTime},
}

// reminderTimeStep is the 1-based step of the reminder-time question, used
// when "start" has to re-ask for a clock time.
const reminderTimeStep = 9

const (
	checkinPollQuestion = "Sudah minum tablet FE hari ini? 💊😊"

	deliveryPollQuestion = "Apakah Bunda sudah melahirkan? 👶"

	postpartumPollQuestion = "Sudah dikunjungi atau periksa ke tenaga kesehatan untuk jadwal ini? 🩺"
)

var (
	checkinPollOptions  = []string{"Sudah ✅", "Belum ⏳"}
	deliveryPollOptions = []string{"Sudah melahirkan ✅", "Belum 🤰"}
	visitPollOptions    = []string{"Sudah ✅", "Belum ⏳"}
)

var reminderTemplates = []string{
	"Terima kasih sudah menjaga kesehatan hari ini. Tablet FE bantu tubuh tetap kuat. 💊💪",
	"Semangat ya, Bunda. Konsisten minum tablet FE bikin tubuh lebih bertenaga. ✨💊",
	"Kamu hebat sudah perhatian sama si kecil. Jangan lupa tablet FE ya. 🤰💗",
	"Sedikit konsisten tiap hari = hasil besar. Tetap minum tablet FE ya. 🌟💊",
	"Jaga diri dengan baik, ya. Tablet FE bantu penuhi kebutuhan zat besi. 🩺💊",
	"Semoga harimu lancar. Tablet FE membantu menjaga kesehatan ibu dan bayi. 🌿🤍",
	"Bunda luar biasa! Tablet FE membantu mencegah anemia. 💖💊",
	"Satu tablet FE sehari bantu tubuh tetap fit. 😊💊",
	"Zat besi penting untuk energi harianmu. Jangan lupa tablet FE. 🔋💊",
	"RemindCare selalu dukung kamu. Tetap semangat hari ini. 🤗💊",
}

const (
	msgWelcome = "Halo! 👋 Aku RemindCare, pendamping kehamilan dan pengingat tablet FE untuk ibu hamil. 🤰💊\n\nUntuk mulai, ketik start ya. ✨\n\nCara pakai: jawab pertanyaan, pilih jam pengingat, lalu terima reminder harian. ⏰\nBaca artikel seputar kehamilan di remindcares.web.app 📚🌐"

	msgNotAllowed = "Nomor ini belum diizinkan. Hubungi admin. 🚫"

	msgMenu = "Menu:\n*start* - aktifkan pengingat\n*stop* - hentikan pengingat\n*ubah jam 17:00* - ganti jam pengingat\n*about* - info singkat\n*website* - alamat website\n*delete* - hapus akun"

	msgAbout = "RemindCare adalah tugas akhir mahasiswa Poltekkes Kemenkes Tasikmalaya jurusan kebidanan (Melva). Informasi: 085156894979."

	msgWebsite = "Website kami: remindcares.web.app"

	msgDeleteConfirm = "Untuk menghapus akun, ketik delete sekali lagi."
	msgDeleted       = "Akun kamu sudah dihapus. Kalau mau pakai lagi, cukup chat lagi ya."

	msgStopped = "Oke, pengingat dihentikan dulu. ⏸️"

	msgRepromptEmpty = "Aku belum menangkap jawabannya. Bisa diulang? 🙂"
	msgYesNoHint     = "Jawab dengan ya atau tidak, ya. 🙏"
	msgTimeHint      = "Format jam belum sesuai. Contoh: 17:00. ⏰"
	msgDateHint      = "Format HPHT belum sesuai. Contoh: 31-01-2024. 📅"

	msgRemindersDeclined = "Baik, RemindCare tidak akan mengingatkan dulu. Kalau berubah pikiran, ketik start. 👍"

	msgChangeTimeHint = "Format jam belum sesuai. Contoh: ubah jam 17:00. ⏰"

	msgTimeChanged   = "Siap, jam pengingat diganti ke %s. ⏰"
	msgAlreadyActive = "Pengingat sudah aktif kok. Kalau mau ganti jam, ketik: ubah jam 17:00. 😊"

	msgOnboardingDone = "Terima kasih! 🎉 RemindCare bakal ingetin minum tablet FE tiap hari jam %s. Sampai nanti ya. 👋"

	msgNothingPending = "Belum ada polling hari ini. Tunggu pengingat berikutnya ya. ⏳"

	msgAnswerAlreadyRecorded = "Jawaban kamu hari ini sudah tercatat sebelumnya ya. Terima kasih. ✅"

	msgCheckinThanksDone   = "Terima kasih. Semoga sehat selalu. 🌼"
	msgCheckinThanksNotYet = "Baik, jangan lupa diminum ya. 💊🙂"

	msgFallback = "Aku siap membantu pengingat tablet FE. Ketik menu untuk melihat perintah. 💬📋"

	msgPregnancyWindowDone = "Masa pendampingan kehamilan sudah selesai. Jika ingin lanjut, balas start. 🎉"

	msgDeliveryCongrats = "Alhamdulillah, selamat atas kelahirannya! 🎉👶 Supaya jadwal kunjungan nifas akurat, aku butuh dua data ya."

	msgAskDeliveryDate = "Tanggal berapa Bunda melahirkan? Format tanggal-bulan-tahun, contoh: 05-10-2024 📅"
	msgAskDeliveryTime = "Jam berapa melahirkan? (format 24 jam, contoh 14:30) ⏰"

	msgDeliveryDateFuture    = "Tanggalnya belum sesuai: tidak boleh setelah hari ini. Coba lagi ya. 📅"
	msgDeliveryDateTooEarly  = "Tanggalnya belum sesuai: lebih awal dari HPHT. Coba cek lagi ya. 📅"
	msgDeliveryTimeFuture    = "Waktunya belum sesuai: tidak boleh di masa depan. Coba lagi ya. ⏰"
	msgDeliveryNotYet        = "Baik, semoga lancar sampai hari H ya. Aku tetap cek berkala. 🤲"
	msgDeliveryDataDone      = "Terima kasih! Jadwal kunjungan nifas dan neonatal sudah aku siapkan. Aku ingatkan saat waktunya tiba. 🗓️✨"
	msgPostpartumEducation   = "Setelah melahirkan, ibu dan bayi perlu kunjungan nifas (KF) dan neonatal (KN): 6 jam, hari ke-3, minggu ke-2, dan hari ke-29 - 42 setelah persalinan. Aku bantu ingatkan satu per satu ya. 🩺🗓️"
	msgPostpartumAllDone     = "Semua jadwal kunjungan nifas sudah selesai. Terima kasih sudah menjaga kesehatan ibu dan bayi! 🎉🙏"
	msgAdminOnly             = "Perintah admin hanya untuk admin ya. 🔒"
	msgAdminHelp             = "Perintah admin: admin stats, admin allow <chat_id>, admin block <chat_id>, admin unblock <chat_id>, admin purge logs <hari>. 🛠️"
	msgAdminTargetFormat     = "Format: admin allow|block|unblock <chat_id>. ✍️"
	msgAdminUnknown          = "Perintah admin tidak dikenali. Ketik: admin help. 🤔"
)

var laborEducationMessages = map[int]string{
	37: "Minggu ke-37: si kecil sudah cukup bulan. 🎉 Kenali tanda awal persalinan: mulas teratur, keluar lendir bercampur darah. Siapkan tas persalinan ya. 🎒",
	38: "Minggu ke-38: posisi bayi biasanya sudah turun ke panggul. Perbanyak istirahat, tetap minum tablet FE, dan catat gerakan bayi. 🤰📝",
	39: "Minggu ke-39: persalinan bisa terjadi kapan saja. Pastikan transportasi dan pendamping sudah siap. Jika ketuban pecah, segera ke fasilitas kesehatan. 🏥",
	40: "Minggu ke-40: ini pekan perkiraan lahir. Tetap tenang, pantau gerakan bayi, dan kontrol ke bidan sesuai jadwal. 🌸",
	41: "Minggu ke-41: sudah melewati perkiraan lahir. Segera periksa ke bidan/dokter untuk evaluasi kondisi bayi ya. 🩺",
}

// laborEducationMessage varies by gestational week; the week-40 variant also
// reports the estimated delivery date.
func laborEducationMessage(week int, edd time.Time) string {
	text, ok := laborEducationMessages[week]
	if !ok {
		return ""
	}
	if week == 40 {
		return fmt.Sprintf("%s Perkiraan lahir: %s.", text, edd.Format("02-01-2006"))
	}
	return text
}

var deliveryStageIntros = map[string]string{
	"early-daily": "Usia kehamilan sudah masuk minggu-minggu persalinan. Aku cek singkat tiap hari ya, cukup jawab lewat polling. 🙏",
	"at-estimate": "Hari ini perkiraan hari lahir (HPL). Bagaimana kabarnya, Bunda? 💗",
	"plus-three":  "Sudah tiga hari lewat dari perkiraan lahir. Kalau belum ada tanda persalinan, sebaiknya periksa ke bidan/dokter ya. 🩺",
}

func visitExplainer(title string) string {
	return fmt.Sprintf("Waktunya %s. Kunjungan ini penting untuk memantau kesehatan ibu dan bayi. 🩺", title)
}

func timeGreeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour >= 4 && hour < 11:
		return "Selamat pagi 🌅"
	case hour >= 11 && hour < 15:
		return "Selamat siang ☀️"
	case hour >= 15 && hour < 18:
		return "Selamat sore 🌇"
	default:
		return "Selamat malam 🌙"
	}
}

// pickReminderTemplate varies the daily copy deterministically per subject
// and day, so retries within a day repeat the same text.
func pickReminderTemplate(chatID, dayKey string) string {
	key := chatID + "-" + dayKey
	hash := 0
	for i := 0; i < len(key); i++ {
		hash = (hash*31 + int(key[i])) % 2147483647
	}
	return reminderTemplates[hash%len(reminderTemplates)]
}

func buildReminderText(sub *subject.Subject, now time.Time) string {
	return fmt.Sprintf("%s, %s!\n%s\nBaca artikel bermanfaat di remindcares.web.app 📚🌐",
		timeGreeting(now), sub.DisplayName(), pickReminderTemplate(sub.ChatID, timeutil.DayKey(now)))
}
