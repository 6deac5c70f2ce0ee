package service

const systemPrompt = "You are an expert advisor for students and professionals relocating abroad. " +
	"Answer with a single valid JSON document only. Do not use markdown, code fences or commentary. " +
	"Use plain strings for text values and keep facts current and specific."

const countryDetailsPrompt = `Describe %s as a destination for an international %s student or professional in the field of %s.
Return JSON with this shape:
{
  "name": "country name",
  "overview": "2-3 sentence overview",
  "cost_of_living": {"currency": "", "rent": "", "food": "", "transport": "", "utilities": "", "monthly_total": ""},
  "education": {"overview": "", "tuition": "", "top_universities": [""], "language_requirements": ""},
  "work": {"job_market": "", "average_salary": "", "work_rights": "", "in_demand_skills": [""]},
  "visa_summary": "",
  "pros": ["at least 3 items"],
  "cons": ["at least 2 items"],
  "tips": [""]
}`

const recommendPrompt = `Recommend at least 5 countries for this profile:
- field of interest: %s
- study level: %s
- budget: %s
- languages spoken: %s
- preferences: %s
- nationality: %s
Return JSON: {"countries": [{"name": "", "reason": "", "match_score": "0-100", "avg_tuition": "", "avg_living_cost": "", "highlights": [""]}]}`

const universityDetailsPrompt = `Provide details about %s in %s for international applicants.
Return JSON with this shape:
{
  "name": "", "country": "", "city": "", "overview": "", "ranking": "", "website": "",
  "tuition_fees": "",
  "programs": [{"name": "", "degree": "", "duration": "", "language": "", "tuition": ""}],
  "admission": {"requirements": [""], "deadlines": "", "language_tests": [""], "acceptance_rate": ""},
  "scholarships": [""],
  "student_life": ""
}
List at least 5 programs.`

const universityListPrompt = `List at least 8 universities in %s that are strong for %s at the %s level and accept international students.
Return JSON: {"universities": [{"name": "", "city": "", "ranking": "", "overview": "", "tuition_fees": "", "website": "", "programs": [""]}]}`

const jobsPrompt = `Below are web search results for %s jobs in %s (experience: %s).
%s
Using these results and your knowledge of the market, list at least 5 relevant job openings or typical roles.
Return JSON: {"jobs": [{"title": "", "company": "", "location": "", "salary": "", "type": "full-time/part-time/contract", "description": "", "requirements": [""], "link": ""}]}
Prefer links taken from the search results.`

const scholarshipsPrompt = `List at least 5 scholarships for %s students from %s who want to study %s in %s.
Return JSON: {"scholarships": [{"name": "", "provider": "", "amount": "", "coverage": [""], "eligibility": "", "deadline": "", "link": "", "description": ""}]}`

const visaPrompt = `Explain the %s visa options for a citizen of %s moving to %s.
Return JSON with this shape:
{
  "country": "",
  "visa_types": [{"name": "", "purpose": "", "duration": "", "processing_time": "", "cost": "", "requirements": [""], "documents": [""], "work_rights": ""}],
  "general_requirements": [""],
  "tips": [""]
}`

const accommodationPrompt = `Describe accommodation options for an international student or young professional in %s, %s with a monthly budget of %s.
Return JSON with this shape:
{
  "city": "",
  "average_rent": "",
  "options": [{"type": "", "price_range": "", "description": "", "pros": [""], "cons": [""]}],
  "platforms": [{"name": "", "url": "", "description": ""}],
  "tips": [""]
}
List at least 4 options.`

const cvPrompt = `Extract a structured profile from the CV text below. Do not invent information that is not present.
Return JSON with this shape:
{
  "contact": {"name": "", "email": "", "phone": "", "location": "", "linkedin": ""},
  "summary": "",
  "education": [{"institution": "", "degree": "", "field": "", "start": "", "end": "", "grade": ""}],
  "experience": [{"company": "", "title": "", "location": "", "start": "", "end": "", "description": ""}],
  "skills": [""],
  "languages": [""],
  "certifications": [""]
}
CV text:
"""
%s
"""`
