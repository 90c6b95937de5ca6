package sales

// Field names a logical column of the sales feed.
type Field string

const (
	FieldDate        Field = "date"
	FieldAmount      Field = "amount"
	FieldCurrency    Field = "currency"
	FieldAgentName   Field = "agentName"
	FieldBrandName   Field = "brandName"
	FieldProjectName Field = "projectName"
	FieldIndustry    Field = "industry"
	FieldStatus      Field = "status"
	FieldCountry     Field = "country"
)

// Fields lists every logical field in feed order.
var Fields = []Field{
	FieldDate,
	FieldAmount,
	FieldCurrency,
	FieldAgentName,
	FieldBrandName,
	FieldProjectName,
	FieldIndustry,
	FieldStatus,
	FieldCountry,
}

// AliasRule maps a logical field to the column labels that may carry it.
// Labels are tried in order and the first truthy value wins.
type AliasRule struct {
	Field  Field
	Labels []string
}

// Lookup returns the first truthy value of the rule's labels in rec.
func (r AliasRule) Lookup(rec RawRecord) (any, bool) {
	for _, label := range r.Labels {
		v, ok := rec[label]
		if !ok || !truthy(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// DefaultAliases is the column mapping used by the sheet feed.
func DefaultAliases() []AliasRule {
	return []AliasRule{
		{Field: FieldDate, Labels: []string{"日期", "Date", "進件日期"}},
		{Field: FieldAmount, Labels: []string{"金額", "Amount", "總金額"}},
		{Field: FieldCurrency, Labels: []string{"幣別", "Currency"}},
		{Field: FieldAgentName, Labels: []string{"業務", "Agent", "業務姓名"}},
		{Field: FieldBrandName, Labels: []string{"品牌", "Brand", "品牌名稱"}},
		{Field: FieldProjectName, Labels: []string{"專案", "Project", "專案名稱"}},
		{Field: FieldIndustry, Labels: []string{"產業", "Industry", "產業分類"}},
		{Field: FieldStatus, Labels: []string{"狀態", "Status", "客戶狀態"}},
		{Field: FieldCountry, Labels: []string{"國家", "Country", "國別"}},
	}
}
