package parser

import (
	"encoding/json"
	"strings"
)

// buildExtractionPrompt renders the extraction instructions shared by both
// LLM providers. The output contract is one strict JSON object matching
// ParsedTransaction; unmentioned fields must be null.
func buildExtractionPrompt(text string, pctx *ParseContext) string {
	var sb strings.Builder
	sb.WriteString("Bạn là trợ lý ghi chép chi tiêu cá nhân cho người Việt. ")
	sb.WriteString("Nhiệm vụ: đọc tin nhắn của người dùng và trích xuất một giao dịch tài chính. ")
	sb.WriteString("Trả lời DUY NHẤT một object JSON hợp lệ, không thêm chữ nào khác, không dùng ```.\n\n")
	sb.WriteString("Format JSON:\n")
	sb.WriteString(`{"intent":"expense|income|transfer|lend|repay","amount":50000,"note":"string|null","date":"YYYY-MM-DD|null","account":"string|null","debt_account":"string|null","category":"string|null","shop":"string|null","group":"string|null","people":["string"],"split_bill":null,"cashback_percent":null,"cashback_amount":null,"feedback":"string"}` + "\n\n")
	sb.WriteString("Quy tắc:\n")
	sb.WriteString("- Trường không được nhắc tới thì để null, KHÔNG để chuỗi rỗng.\n")
	sb.WriteString("- Quy đổi hậu tố tiền: \"k\" nhân 1.000 (50k = 50000), \"tr\"/\"triệu\" nhân 1.000.000, \"vạn\" nhân 10.000.\n")
	sb.WriteString("- Số trần không có hậu tố trong chi tiêu hằng ngày thường là nghìn đồng (ví dụ \"ăn sáng 30\" nghĩa là 30000); hãy dùng phán đoán theo ngữ cảnh.\n")
	sb.WriteString("- amount luôn là số dương.\n")
	sb.WriteString("- Ngày tương đối tính theo ngày hiện tại bên dưới: \"hôm qua\" = trừ 1 ngày, \"hôm kia\" = trừ 2 ngày.\n")
	sb.WriteString("- intent \"transfer\": account là tài khoản nguồn, debt_account là tài khoản đích.\n")
	sb.WriteString("- intent \"lend\"/\"repay\": people là danh sách tên người liên quan; group nếu nhắc tới một nhóm.\n")
	sb.WriteString("- account/category/shop/group/people dùng đúng tên trong danh bạ bên dưới nếu khớp, nếu không thì giữ nguyên chữ của người dùng.\n")
	sb.WriteString("- feedback: một câu tiếng Việt ngắn xác nhận bạn đã hiểu gì.\n\n")

	if pctx != nil && pctx.Previous != nil {
		prev, _ := json.Marshal(pctx.Previous)
		sb.WriteString("QUAN TRỌNG - tin nhắn này là CHỈNH SỬA cho giao dịch trước đó. ")
		sb.WriteString("Chỉ thay đổi các trường được nhắc tới, mọi trường khác GIỮ NGUYÊN giá trị cũ bên dưới:\n")
		sb.Write(prev)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Ví dụ:\n")
	sb.WriteString("User: \"Ăn trưa 50k\"\n")
	sb.WriteString(`Output: {"intent":"expense","amount":50000,"note":"Ăn trưa","date":null,"account":null,"debt_account":null,"category":"Ăn uống","shop":null,"group":null,"people":[],"split_bill":null,"cashback_percent":null,"cashback_amount":null,"feedback":"Ghi nhận chi 50.000đ ăn trưa."}` + "\n")
	sb.WriteString("User: \"cho Minh vay 2tr bằng vcb\"\n")
	sb.WriteString(`Output: {"intent":"lend","amount":2000000,"note":"cho Minh vay","date":null,"account":"vcb","debt_account":null,"category":null,"shop":null,"group":null,"people":["Minh"],"split_bill":null,"cashback_percent":null,"cashback_amount":null,"feedback":"Ghi nhận cho Minh vay 2.000.000đ từ vcb."}` + "\n")
	sb.WriteString("User: \"chuyển 500k từ vcb sang momo hôm qua\"\n")
	sb.WriteString(`Output: {"intent":"transfer","amount":500000,"note":null,"date":"2024-01-14","account":"vcb","debt_account":"momo","category":null,"shop":null,"group":null,"people":[],"split_bill":null,"cashback_percent":null,"cashback_amount":null,"feedback":"Ghi nhận chuyển 500.000đ từ vcb sang momo hôm qua."}` + "\n\n")

	if pctx != nil {
		sb.WriteString("Danh bạ:\n")
		writeNames(&sb, "- Tài khoản: ", accountNames(pctx.Accounts))
		writeNames(&sb, "- Người: ", personNames(pctx.People, false))
		writeNames(&sb, "- Nhóm: ", personNames(pctx.People, true))
		writeNames(&sb, "- Danh mục: ", categoryNames(pctx.Categories))
		writeNames(&sb, "- Cửa hàng: ", shopNames(pctx.Shops))
		if !pctx.Now.IsZero() {
			sb.WriteString("- Ngày hiện tại: " + pctx.Now.Format("2006-01-02") + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Tin nhắn của người dùng:\n")
	sb.WriteString(text)
	return sb.String()
}

func writeNames(sb *strings.Builder, label string, names []string) {
	if len(names) == 0 {
		return
	}
	sb.WriteString(label + strings.Join(names, ", ") + "\n")
}

func accountNames(accounts []Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Name)
	}
	return out
}

func personNames(people []Person, groups bool) []string {
	var out []string
	for _, p := range people {
		if p.IsGroup == groups {
			out = append(out, p.Name)
		}
	}
	return out
}

func categoryNames(categories []Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.Name)
	}
	return out
}

func shopNames(shops []Shop) []string {
	out := make([]string, 0, len(shops))
	for _, s := range shops {
		out = append(out, s.Name)
	}
	return out
}
